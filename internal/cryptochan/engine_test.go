package cryptochan

import (
	"bytes"
	"testing"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	sender, key, err := NewEngine(RoleInitiator)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	receiver, err := ImportEngine(key, RoleInitiator)
	if err != nil {
		t.Fatalf("ImportEngine: %v", err)
	}

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	iv, ciphertext := sender.Encrypt(plaintext)

	got, err := receiver.Decrypt(iv, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestIV_MonotonicAndNeverReused(t *testing.T) {
	e, _, err := NewEngine(RoleInitiator)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	seen := make(map[string]bool)
	var prevCounter uint64
	for i := 0; i < 1000; i++ {
		iv, _ := e.Encrypt([]byte("x"))
		key := string(iv)
		if seen[key] {
			t.Fatalf("IV reused at iteration %d", i)
		}
		seen[key] = true

		counter := beUint64(iv[4:])
		if i > 0 && counter != prevCounter+1 {
			t.Fatalf("counter not monotonic: got %d after %d", counter, prevCounter)
		}
		prevCounter = counter
	}
}

func TestImportEngine_RejectsWrongKeyLength(t *testing.T) {
	_, err := ImportEngine(make([]byte, 16), RoleJoiner)
	if err != ErrKeyImport {
		t.Fatalf("expected ErrKeyImport, got %v", err)
	}
}

func TestDecrypt_TamperedCiphertextFails(t *testing.T) {
	sender, key, _ := NewEngine(RoleInitiator)
	receiver, _ := ImportEngine(key, RoleInitiator)

	iv, ciphertext := sender.Encrypt([]byte("payload"))
	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0xFF

	if _, err := receiver.Decrypt(iv, tampered); err != ErrChunkDecrypt {
		t.Fatalf("expected ErrChunkDecrypt, got %v", err)
	}
}

func TestRolePrefix_InitiatorAndJoinerDiffer(t *testing.T) {
	initiator, _, _ := NewEngine(RoleInitiator)
	joiner, _, _ := NewEngine(RoleJoiner)

	ivInit, _ := initiator.Encrypt([]byte("a"))
	ivJoin, _ := joiner.Encrypt([]byte("a"))

	if bytes.Equal(ivInit[:4], ivJoin[:4]) {
		t.Fatalf("expected distinct session prefixes for initiator vs joiner")
	}
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
