package services

import "testing"

func TestDeclaredSizeMatches(t *testing.T) {
	cases := []struct {
		name     string
		declared int64
		stored   int64
		want     bool
	}{
		{"exact match", 1024, 1024, true},
		{"not declared", 0, 1024, true},
		{"negative treated as not declared", -1, 1024, true},
		{"short upload", 2048, 1024, false},
		{"stored more than declared", 1024, 2048, false},
		{"declared but nothing stored", 1024, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := declaredSizeMatches(tc.declared, tc.stored); got != tc.want {
				t.Errorf("declaredSizeMatches(%d, %d) = %v, want %v", tc.declared, tc.stored, got, tc.want)
			}
		})
	}
}
