// Package cryptochan implements the per-sender AES-256-GCM encryption
// context used to encrypt and decrypt file chunks on the data channel:
// key generation/import, IV construction from a session prefix plus a
// monotonic counter, and authenticated encrypt/decrypt.
package cryptochan

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the GCM nonce length this protocol always uses.
	IVSize = 12
	// sessionPrefixSize is the fixed high-order portion of every IV
	// emitted by one sender.
	sessionPrefixSize = 4
)

var (
	// ErrKeyImport is returned when a received encryption key is not the
	// expected length. It is fatal to the session: without a valid key,
	// decryption can never succeed.
	ErrKeyImport = errors.New("cryptochan: invalid key length")

	// ErrChunkDecrypt is returned when GCM authentication fails on a
	// received chunk. Per the protocol's permissive default, a caller may
	// log and continue rather than tear down the session.
	ErrChunkDecrypt = errors.New("cryptochan: chunk decryption failed")

	// ErrIVTooShort is returned when a supplied IV is not IVSize bytes.
	ErrIVTooShort = errors.New("cryptochan: IV must be 12 bytes")
)

// Role fixes the session prefix deterministically so the two ends of a
// pairing can never collide on IVs by coincidence.
type Role uint8

const (
	RoleInitiator Role = iota
	RoleJoiner
)

// Engine holds one sender's AES-GCM key, session prefix, and monotonic
// counter. A session has two Engines: one per direction, each encrypting
// with its own prefix/counter pair but decrypting with the peer's.
type Engine struct {
	aead          cipher.AEAD
	sessionPrefix [sessionPrefixSize]byte
	counter       atomic.Uint64
}

// NewEngine generates a fresh random AES-256-GCM key, to be exported and
// sent to the peer via an ENCRYPTION_KEY message. Used by the initiator.
func NewEngine(role Role) (*Engine, []byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, nil, fmt.Errorf("cryptochan: generate key: %w", err)
	}
	e, err := newEngineWithKey(key, role)
	if err != nil {
		return nil, nil, err
	}
	return e, key, nil
}

// ImportEngine builds an Engine from a key received over the wire. Used by
// the joiner on receipt of ENCRYPTION_KEY.
func ImportEngine(key []byte, role Role) (*Engine, error) {
	return newEngineWithKey(key, role)
}

func newEngineWithKey(key []byte, role Role) (*Engine, error) {
	if len(key) != KeySize {
		return nil, ErrKeyImport
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptochan: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptochan: %w", err)
	}

	e := &Engine{aead: aead}
	e.sessionPrefix = rolePrefix(role)
	return e, nil
}

// rolePrefix derives a deterministic session prefix from role: initiator
// uses all-zero bytes, joiner uses a prefix with its low byte set to 1.
func rolePrefix(role Role) [sessionPrefixSize]byte {
	var p [sessionPrefixSize]byte
	if role == RoleJoiner {
		p[sessionPrefixSize-1] = 1
	}
	return p
}

// nextIV returns the IV for the next chunk and advances the counter. Never
// returns the same IV twice for the lifetime of the Engine.
func (e *Engine) nextIV() [IVSize]byte {
	var iv [IVSize]byte
	copy(iv[:sessionPrefixSize], e.sessionPrefix[:])
	binary.BigEndian.PutUint64(iv[sessionPrefixSize:], e.counter.Add(1)-1)
	return iv
}

// Encrypt encrypts plaintext with the next IV in sequence and returns the
// IV alongside the ciphertext-and-tag.
func (e *Engine) Encrypt(plaintext []byte) (iv []byte, ciphertext []byte) {
	ivArr := e.nextIV()
	sealed := e.aead.Seal(nil, ivArr[:], plaintext, nil)
	return ivArr[:], sealed
}

// Decrypt authenticates and decrypts ciphertext using the supplied IV.
// Returns ErrChunkDecrypt on any authentication failure.
func (e *Engine) Decrypt(iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, ErrIVTooShort
	}
	plaintext, err := e.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrChunkDecrypt
	}
	return plaintext, nil
}

// Wipe clears the engine's key material. Call on session teardown.
func (e *Engine) Wipe() {
	e.aead = nil
}
