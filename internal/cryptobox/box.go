package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
	separator = "."
)

// ErrDecrypt is the single opaque error returned for any malformed or
// unauthentic ciphertext. Callers never learn which check failed.
var ErrDecrypt = errors.New("cryptobox: decryption failed")

// Box performs authenticated symmetric encryption of tenant credentials at
// rest. Wire format: base64(iv).base64(tag).base64(ciphertext).
type Box struct {
	aead cipher.AEAD
}

var (
	processBox  *Box
	processOnce sync.Once
	processErr  error
)

// Default returns the process-wide box, constructing it from the given key on
// first use. Later calls ignore the key argument.
func Default(key []byte) (*Box, error) {
	processOnce.Do(func() {
		processBox, processErr = New(key)
	})
	return processBox, processErr
}

// New creates a box from a 256-bit key.
func New(key []byte) (*Box, error) {
	if len(key) != keySize {
		return nil, errors.New("cryptobox: key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead}, nil
}

// Encrypt seals plaintext and returns the three-field wire string.
func (b *Box) Encrypt(plaintext []byte) (string, error) {
	iv := make([]byte, nonceSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	sealed := b.aead.Seal(nil, iv, plaintext, nil)

	// GCM appends the 16-byte tag to the ciphertext; the wire format carries
	// it as a separate field.
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	parts := []string{
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ct),
	}
	return strings.Join(parts, separator), nil
}

// Decrypt opens a wire string produced by Encrypt. Any malformed input or
// failed tag verification yields ErrDecrypt.
func (b *Box) Decrypt(encoded string) ([]byte, error) {
	fields := strings.Split(encoded, separator)
	if len(fields) != 3 {
		return nil, ErrDecrypt
	}

	iv, err := base64.StdEncoding.DecodeString(fields[0])
	if err != nil || len(iv) != nonceSize {
		return nil, ErrDecrypt
	}
	tag, err := base64.StdEncoding.DecodeString(fields[1])
	if err != nil || len(tag) != tagSize {
		return nil, ErrDecrypt
	}
	ct, err := base64.StdEncoding.DecodeString(fields[2])
	if err != nil {
		return nil, ErrDecrypt
	}

	plaintext, err := b.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
