package storage

import "testing"

func TestGenerateKey(t *testing.T) {
	key := GenerateKey("tenant-a", "doc-1", 3)
	want := "tenants/tenant-a/docs/doc-1/v3/original"
	if key != want {
		t.Errorf("got %q, want %q", key, want)
	}
}

func TestGenerateKeyDeterministic(t *testing.T) {
	a := GenerateKey("t", "d", 1)
	b := GenerateKey("t", "d", 1)
	if a != b {
		t.Errorf("same inputs produced different keys: %q vs %q", a, b)
	}
	if GenerateKey("t", "d", 2) == a {
		t.Error("different version numbers must produce different keys")
	}
	if GenerateKey("t2", "d", 1) == a {
		t.Error("different tenants must produce different keys")
	}
}
