package internal

import "testing"

func TestNewChallengeTokenUnique(t *testing.T) {
	a, ha, err := NewChallengeToken()
	if err != nil {
		t.Fatalf("NewChallengeToken failed: %v", err)
	}
	b, hb, err := NewChallengeToken()
	if err != nil {
		t.Fatalf("NewChallengeToken failed: %v", err)
	}

	if a == b {
		t.Fatal("two challenge tokens must not collide")
	}
	if ha == hb {
		t.Fatal("hashes of distinct tokens must differ")
	}
	if HashChallengeToken(a) != ha {
		t.Fatal("hash must be reproducible from the plaintext token")
	}
}
