package utils

import "testing"

func TestSHA256Hex(t *testing.T) {
	// Known vector for the empty input.
	if got := SHA256Hex(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("empty digest = %s", got)
	}
	if got := SHA256Hex([]byte("abc")); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("abc digest = %s", got)
	}
	if len(SHA256Hex([]byte("x"))) != 64 {
		t.Error("digest must be 64 hex characters")
	}
}
