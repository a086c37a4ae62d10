package cards

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	digitBits = 6
	digitMask = 1<<digitBits - 1

	// deck word boundaries: digits [0,21), [21,42), [42,52)
	deckWordDigits = 21
	deckWords      = 3

	// BlockSize is the byte width of one packed word on the wire.
	BlockSize = 32
)

// ErrMalformed is returned when a word carries bits or digits that no
// packing of valid cards could have produced.
var ErrMalformed = errors.New("malformed packed cards")

// Block is the 32-byte big-endian image of one packed word.
type Block [BlockSize]byte

// PackedHand is an 11-slot hand packed as Σ card[i]·64^i.
type PackedHand struct {
	w uint256.Int
}

// PackedDeck is a 52-card deck packed into three words of 21, 21 and 10 digits.
type PackedDeck struct {
	w [deckWords]uint256.Int
}

func packDigits(cards []Card) uint256.Int {
	var w, d uint256.Int
	for i := len(cards) - 1; i >= 0; i-- {
		w.Lsh(&w, digitBits)
		d.SetUint64(uint64(cards[i]))
		w.Or(&w, &d)
	}
	return w
}

func unpackDigits(w uint256.Int, out []Card) {
	mask := uint256.NewInt(digitMask)
	var d uint256.Int
	for i := range out {
		d.And(&w, mask)
		out[i] = Card(d.Uint64())
		w.Rsh(&w, digitBits)
	}
}

func checkCards(cards []Card) error {
	for i, c := range cards {
		if !c.Valid() {
			return fmt.Errorf("card %d at slot %d out of range", uint8(c), i)
		}
	}
	return nil
}

// PackHand packs up to HandSlots cards. Unused trailing slots hold Empty.
func PackHand(cards []Card) (PackedHand, error) {
	if len(cards) > HandSlots {
		return PackedHand{}, fmt.Errorf("hand has %d cards, max %d", len(cards), HandSlots)
	}
	if err := checkCards(cards); err != nil {
		return PackedHand{}, err
	}
	slots := EmptyHand()
	copy(slots[:], cards)
	return PackedHand{w: packDigits(slots[:])}, nil
}

// MustPackHand is PackHand for literals known to be valid.
func MustPackHand(cards ...Card) PackedHand {
	h, err := PackHand(cards)
	if err != nil {
		panic(err)
	}
	return h
}

// Cards unpacks all slots of the hand.
func (h PackedHand) Cards() [HandSlots]Card {
	var out [HandSlots]Card
	unpackDigits(h.w, out[:])
	return out
}

// Word returns the packed integer.
func (h PackedHand) Word() *uint256.Int {
	return h.w.Clone()
}

// Block returns the wire image of the hand.
func (h PackedHand) Block() Block {
	return h.w.Bytes32()
}

// HandFromBlock decodes a wire image, rejecting anything a valid hand could
// not have produced.
func HandFromBlock(b Block) (PackedHand, error) {
	var h PackedHand
	h.w.SetBytes32(b[:])
	if h.w.BitLen() > HandSlots*digitBits {
		return PackedHand{}, fmt.Errorf("%w: hand word has %d bits", ErrMalformed, h.w.BitLen())
	}
	cards := h.Cards()
	if err := checkCards(cards[:]); err != nil {
		return PackedHand{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return h, nil
}

// PackDeck packs a full deck.
func PackDeck(deck [DeckSize]Card) (PackedDeck, error) {
	if err := checkCards(deck[:]); err != nil {
		return PackedDeck{}, err
	}
	var d PackedDeck
	for i := 0; i < deckWords; i++ {
		lo, hi := deckBounds(i)
		d.w[i] = packDigits(deck[lo:hi])
	}
	return d, nil
}

func deckBounds(word int) (int, int) {
	lo := word * deckWordDigits
	hi := lo + deckWordDigits
	if hi > DeckSize {
		hi = DeckSize
	}
	return lo, hi
}

// Cards unpacks the deck.
func (d PackedDeck) Cards() [DeckSize]Card {
	var out [DeckSize]Card
	for i := 0; i < deckWords; i++ {
		lo, hi := deckBounds(i)
		unpackDigits(d.w[i], out[lo:hi])
	}
	return out
}

// Words returns copies of the three packed integers.
func (d PackedDeck) Words() [deckWords]*uint256.Int {
	return [deckWords]*uint256.Int{d.w[0].Clone(), d.w[1].Clone(), d.w[2].Clone()}
}

// Blocks returns the wire image of the deck, one block per word.
func (d PackedDeck) Blocks() [deckWords]Block {
	return [deckWords]Block{d.w[0].Bytes32(), d.w[1].Bytes32(), d.w[2].Bytes32()}
}

// DeckFromBlocks decodes a wire image of a deck.
func DeckFromBlocks(blocks [deckWords]Block) (PackedDeck, error) {
	var d PackedDeck
	for i := range blocks {
		d.w[i].SetBytes32(blocks[i][:])
		lo, hi := deckBounds(i)
		if bits := d.w[i].BitLen(); bits > (hi-lo)*digitBits {
			return PackedDeck{}, fmt.Errorf("%w: deck word %d has %d bits", ErrMalformed, i, bits)
		}
	}
	cards := d.Cards()
	if err := checkCards(cards[:]); err != nil {
		return PackedDeck{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return d, nil
}
