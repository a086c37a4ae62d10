// Package confidential describes the boundary with the confidential-compute
// service: the argument list a request carries, the circuits it can run, the
// payload a settlement delivers and the field cipher both sides agree on.
package confidential

import (
	"encoding/hex"
	"fmt"
)

// Nonce is a 128-bit little-endian counter attached to every encrypted field.
type Nonce [16]byte

// Next returns n + 1.
func (n Nonce) Next() Nonce {
	for i := range n {
		n[i]++
		if n[i] != 0 {
			break
		}
	}
	return n
}

// Uint64 returns the low 64 bits.
func (n Nonce) Uint64() uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(n[i])
	}
	return v
}

// NonceFromUint64 builds a nonce whose high 64 bits are zero.
func NonceFromUint64(v uint64) Nonce {
	var n Nonce
	for i := 0; i < 8; i++ {
		n[i] = byte(v >> (8 * i))
	}
	return n
}

func (n Nonce) IsZero() bool { return n == Nonce{} }

func (n Nonce) String() string { return hex.EncodeToString(n[:]) }

func (n Nonce) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

func (n *Nonce) UnmarshalText(b []byte) error {
	return decodeFixed(n[:], b, "nonce")
}

// PublicKey is an x25519 public key.
type PublicKey [32]byte

func (k PublicKey) IsZero() bool { return k == PublicKey{} }

func (k PublicKey) String() string { return hex.EncodeToString(k[:]) }

func (k PublicKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *PublicKey) UnmarshalText(b []byte) error {
	return decodeFixed(k[:], b, "public key")
}

// ParsePublicKey decodes a hex encoded key.
func ParsePublicKey(s string) (PublicKey, error) {
	var k PublicKey
	err := k.UnmarshalText([]byte(s))
	return k, err
}

// Ciphertext is one encrypted 32-byte block.
type Ciphertext [32]byte

func (c Ciphertext) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(c[:])), nil
}

func (c *Ciphertext) UnmarshalText(b []byte) error {
	return decodeFixed(c[:], b, "ciphertext")
}

func decodeFixed(dst, src []byte, what string) error {
	if hex.DecodedLen(len(src)) != len(dst) {
		return fmt.Errorf("invalid %s length: want %d hex chars, got %d", what, 2*len(dst), len(src))
	}
	if _, err := hex.Decode(dst, src); err != nil {
		return fmt.Errorf("invalid %s: %w", what, err)
	}
	return nil
}
