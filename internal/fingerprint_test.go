package internal

import "testing"

func TestFingerprintStableAndShort(t *testing.T) {
	a := Fingerprint("aaa.bbb.ccc")
	if a != Fingerprint("aaa.bbb.ccc") {
		t.Fatal("fingerprint must be deterministic")
	}
	if len(a) != 2*fingerprintBytes {
		t.Fatalf("expected %d hex chars, got %q", 2*fingerprintBytes, a)
	}
	if a == Fingerprint("aaa.bbb.ccd") {
		t.Fatal("different tokens should not share a fingerprint")
	}
	if Fingerprint("") != "" {
		t.Fatal("empty token should have empty fingerprint")
	}
}
