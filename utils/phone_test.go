package utils

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		cc      string
		want    string
		wantErr bool
	}{
		{"already e164", "+14155551234", "1", "+14155551234", false},
		{"formatted us", "(415) 555-1234", "1", "+14155551234", false},
		{"dots and dashes", "415.555-1234", "1", "+14155551234", false},
		{"leading zero stripped", "0171 2345678", "49", "+491712345678", false},
		{"cc with plus", "4155551234", "+1", "+14155551234", false},
		{"letters rejected", "call-me-maybe", "1", "", true},
		{"empty", "", "1", "", true},
		{"too short", "12345", "1", "", true},
		{"too long", "+1234567890123456789", "1", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.in, tc.cc)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Errorf("got err %v, want ErrInvalidPhone", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhone failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	once, err := NormalizePhone("(415) 555-1234", "1")
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	twice, err := NormalizePhone(once, "1")
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if once != twice {
		t.Errorf("normalization not idempotent: %q vs %q", once, twice)
	}
}
