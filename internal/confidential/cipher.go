package confidential

import (
	"crypto/sha256"
	"fmt"
	"io"

	"casino-backend/internal/cards"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const fieldKeyInfo = "blackjack-field-v1"

// KeyPair is an x25519 key pair.
type KeyPair struct {
	Private [32]byte
	Public  PublicKey
}

// GenerateKeyPair reads a private scalar from r.
func GenerateKeyPair(r io.Reader) (KeyPair, error) {
	var kp KeyPair
	if _, err := io.ReadFull(r, kp.Private[:]); err != nil {
		return KeyPair{}, fmt.Errorf("failed to read key material: %w", err)
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to derive public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// Cipher encrypts 32-byte blocks under a key both sides of an x25519
// exchange can derive.
type Cipher struct {
	key [chacha20.KeySize]byte
}

// NewCipher derives the field key shared between priv and peer.
func NewCipher(priv [32]byte, peer PublicKey) (*Cipher, error) {
	shared, err := curve25519.X25519(priv[:], peer[:])
	if err != nil {
		return nil, fmt.Errorf("failed to compute shared secret: %w", err)
	}
	c := &Cipher{}
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte(fieldKeyInfo)), c.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive field key: %w", err)
	}
	return c, nil
}

func (c *Cipher) stream(nonce Nonce) (*chacha20.Cipher, error) {
	var xn [chacha20.NonceSizeX]byte
	copy(xn[:], nonce[:])
	return chacha20.NewUnauthenticatedCipher(c.key[:], xn[:])
}

// Seal encrypts blocks as one keystream run under nonce.
func (c *Cipher) Seal(nonce Nonce, blocks []cards.Block) ([]Ciphertext, error) {
	s, err := c.stream(nonce)
	if err != nil {
		return nil, err
	}
	out := make([]Ciphertext, len(blocks))
	for i := range blocks {
		s.XORKeyStream(out[i][:], blocks[i][:])
	}
	return out, nil
}

// Open reverses Seal.
func (c *Cipher) Open(nonce Nonce, cts []Ciphertext) ([]cards.Block, error) {
	s, err := c.stream(nonce)
	if err != nil {
		return nil, err
	}
	out := make([]cards.Block, len(cts))
	for i := range cts {
		s.XORKeyStream(out[i][:], cts[i][:])
	}
	return out, nil
}

// SealField encrypts blocks into a field addressed to recipient.
func (c *Cipher) SealField(recipient PublicKey, nonce Nonce, blocks ...cards.Block) (EncryptedField, error) {
	cts, err := c.Seal(nonce, blocks)
	if err != nil {
		return EncryptedField{}, err
	}
	return EncryptedField{Recipient: recipient, Nonce: nonce, Ciphertexts: cts}, nil
}

// OpenField decrypts f.
func (c *Cipher) OpenField(f EncryptedField) ([]cards.Block, error) {
	return c.Open(f.Nonce, f.Ciphertexts)
}

// OpenHand decrypts a single-block field holding a packed hand.
func (c *Cipher) OpenHand(f EncryptedField) (cards.PackedHand, error) {
	if len(f.Ciphertexts) != 1 {
		return cards.PackedHand{}, fmt.Errorf("hand field has %d blocks", len(f.Ciphertexts))
	}
	blocks, err := c.OpenField(f)
	if err != nil {
		return cards.PackedHand{}, err
	}
	return cards.HandFromBlock(blocks[0])
}
