package masterpersist

import "testing"

func TestHashAndVerifyPasswordRoundTrip(t *testing.T) {
	encoded, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(encoded, "correct horse battery staple") {
		t.Fatalf("expected verify to succeed for the correct password")
	}
	if VerifyPassword(encoded, "wrong password") {
		t.Fatalf("expected verify to fail for an incorrect password")
	}
}

func TestVerifyPasswordRejectsMalformedVerifier(t *testing.T) {
	if VerifyPassword("not-a-valid-verifier", "anything") {
		t.Fatalf("expected malformed verifier to fail closed")
	}
}
