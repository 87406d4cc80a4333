package keymanager

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

// FuzzBlockRoundTrip verifies that for any plaintext, Encrypt
// followed by Decrypt on a BlockFile returns the original content.
func FuzzBlockRoundTrip(f *testing.F) {
	f.Add([]byte("hello world"))
	f.Add([]byte(""))
	f.Add([]byte{0})
	f.Add(make([]byte, 4096))

	m, err := New([]byte("fuzz root secret"), fixedSession{7}, 8, zerolog.Nop())
	if err != nil {
		f.Fatal(err)
	}
	fek, err := m.GenerateFEK([16]byte{7})
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, plaintext []byte) {
		ciphertext, err := m.Encrypt(BlockFile, plaintext, fek)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		got, _, err := m.Decrypt(BlockFile, ciphertext, fek)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(got, plaintext) && !(len(got) == 0 && len(plaintext) == 0) {
			t.Fatalf("round-trip mismatch: got %d bytes, want %d bytes", len(got), len(plaintext))
		}
	})
}

// FuzzDecryptNoPanic ensures Decrypt never panics on arbitrary ciphertext.
func FuzzDecryptNoPanic(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add(make([]byte, NonceLen+GCMTagLen))

	m, err := New([]byte("fuzz root secret"), fixedSession{7}, 8, zerolog.Nop())
	if err != nil {
		f.Fatal(err)
	}
	fek, err := m.GenerateFEK([16]byte{7})
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, ciphertext []byte) {
		_, _, _ = m.Decrypt(BlockFile, ciphertext, fek)
		_, _, _ = m.Decrypt(MetaFile, ciphertext, nil)
	})
}
