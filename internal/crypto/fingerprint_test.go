package crypto

import (
	"strings"
	"testing"
)

func TestFingerprint_Determinism(t *testing.T) {
	t.Parallel()

	a := Fingerprint("6f1c1f0e-3a53-4d2a-9a59-0f6c2b9d7e11")
	b := Fingerprint("6f1c1f0e-3a53-4d2a-9a59-0f6c2b9d7e11")
	c := Fingerprint("0d7e3c1b-8f9a-4a4e-b1d5-2c6b9e7f0a33")
	if a != b {
		t.Fatalf("same input, different output: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("different inputs collide: %s", a)
	}
	if len(a) != 2*fingerprintLen {
		t.Fatalf("len=%d, want=%d", len(a), 2*fingerprintLen)
	}
}

func TestFingerprint_DoesNotContainInput(t *testing.T) {
	t.Parallel()

	id := "device-123"
	if strings.Contains(Fingerprint(id), id) {
		t.Fatalf("fingerprint leaks raw id")
	}
}

func TestFingerprint_Blank(t *testing.T) {
	t.Parallel()

	if got := Fingerprint("   "); got != "" {
		t.Fatalf("blank id: got %q, want empty", got)
	}
	if Fingerprint(" a ") != Fingerprint("a") {
		t.Fatalf("surrounding whitespace should be ignored")
	}
}
