package crypto

import (
	"crypto/cipher"
	"testing"
)

func testAEAD(t *testing.T) cipher.AEAD {
	t.Helper()
	key, err := DeriveHandshakeKey(secret())
	if err != nil {
		t.Fatalf("DeriveHandshakeKey: %v", err)
	}
	aead, err := NewGCM(key)
	if err != nil {
		t.Fatalf("NewGCM: %v", err)
	}
	return aead
}

func TestGenerateChallenge_SizeRange(t *testing.T) {
	aead := testAEAD(t)
	nonce := MessageNonce(0, DirectionClientToServer)

	for i := 0; i < 50; i++ {
		plaintext, ciphertext, err := GenerateChallenge(aead, nonce, 128, 256)
		if err != nil {
			t.Fatalf("GenerateChallenge: %v", err)
		}
		if len(plaintext) < 128 || len(plaintext) > 256 {
			t.Fatalf("plaintext length %d out of range [128, 256]", len(plaintext))
		}
		if len(ciphertext) != len(plaintext)+TagSize {
			t.Fatalf("ciphertext length = %d, want %d", len(ciphertext), len(plaintext)+TagSize)
		}
	}
}

func TestGenerateChallenge_InvalidRange(t *testing.T) {
	aead := testAEAD(t)
	nonce := MessageNonce(0, DirectionClientToServer)

	if _, _, err := GenerateChallenge(aead, nonce, 0, 10); err == nil {
		t.Fatal("expected error for minSize == 0")
	}
	if _, _, err := GenerateChallenge(aead, nonce, 10, 5); err == nil {
		t.Fatal("expected error for maxSize < minSize")
	}
}

func TestGenerateChallenge_DecryptsBackToPlaintext(t *testing.T) {
	key, _ := DeriveHandshakeKey(secret())
	aead, _ := NewGCM(key)
	nonce := MessageNonce(0, DirectionClientToServer)

	plaintext, ciphertext, err := GenerateChallenge(aead, nonce, 128, 200)
	if err != nil {
		t.Fatalf("GenerateChallenge: %v", err)
	}

	decrypted, err := aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(decrypted) != string(plaintext) {
		t.Fatal("decrypted challenge does not match returned plaintext")
	}
}

func TestVerifyChallenge_MatchAndMismatch(t *testing.T) {
	expected := []byte("the-solution")
	if !VerifyChallenge(expected, []byte("the-solution")) {
		t.Fatal("expected match to verify")
	}
	if VerifyChallenge(expected, []byte("wrong-answer")) {
		t.Fatal("expected mismatch to fail verification")
	}
	if VerifyChallenge(expected, []byte("the-solutio")) {
		t.Fatal("expected length mismatch to fail verification")
	}
}

func TestVerifyChallenge_EmptyInputs(t *testing.T) {
	if !VerifyChallenge(nil, nil) {
		t.Fatal("two empty inputs should verify as equal")
	}
	if VerifyChallenge([]byte{}, []byte{1}) {
		t.Fatal("empty vs non-empty must not verify")
	}
}
