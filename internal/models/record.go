package models

import (
	"encoding/binary"
	"fmt"
)

// Byte layout of a session's ledger record. Ciphertext references handed to
// the compute service point into this image.
const (
	RecordDeckOffset       = 8
	RecordDeckLength       = 96
	RecordPlayerHandOffset = 104
	RecordDealerHandOffset = 136
	RecordHandLength       = 32

	recordPlayerSize  = 168
	recordDealerSize  = 169
	recordDeckNonce   = 170
	recordPlayerNonce = 186
	recordDealerNonce = 202
	recordState       = 218
	recordStood       = 219
	recordBet         = 220
	recordResult      = 228
	recordPlayerKey   = 229

	RecordSize = 261

	noResult = 0xff
)

var recordDiscriminator = [8]byte{'b', 'j', 'g', 'a', 'm', 'e', 0, 1}

// Record renders the fixed-layout ledger image of the session.
func (g *GameSession) Record() []byte {
	b := make([]byte, RecordSize)
	copy(b, recordDiscriminator[:])
	for i, ct := range g.Deck {
		copy(b[RecordDeckOffset+i*32:], ct[:])
	}
	copy(b[RecordPlayerHandOffset:], g.PlayerHand[:])
	copy(b[RecordDealerHandOffset:], g.DealerHand[:])
	b[recordPlayerSize] = g.PlayerHandSize
	b[recordDealerSize] = g.DealerHandSize
	copy(b[recordDeckNonce:], g.DeckNonce[:])
	copy(b[recordPlayerNonce:], g.PlayerHandNonce[:])
	copy(b[recordDealerNonce:], g.DealerHandNonce[:])
	b[recordState] = uint8(g.State)
	if g.PlayerHasStood {
		b[recordStood] = 1
	}
	binary.LittleEndian.PutUint64(b[recordBet:], uint64(g.BetAmount))
	b[recordResult] = noResult
	if g.Result != nil {
		b[recordResult] = *g.Result
	}
	copy(b[recordPlayerKey:], g.PlayerKey[:])
	return b
}

// ParseRecord decodes a record image. Fields not part of the image are left zero.
func ParseRecord(b []byte) (*GameSession, error) {
	if len(b) != RecordSize {
		return nil, fmt.Errorf("record is %d bytes, want %d", len(b), RecordSize)
	}
	if [8]byte(b[:8]) != recordDiscriminator {
		return nil, fmt.Errorf("unknown record discriminator %x", b[:8])
	}
	g := &GameSession{}
	for i := range g.Deck {
		copy(g.Deck[i][:], b[RecordDeckOffset+i*32:])
	}
	copy(g.PlayerHand[:], b[RecordPlayerHandOffset:])
	copy(g.DealerHand[:], b[RecordDealerHandOffset:])
	g.PlayerHandSize = b[recordPlayerSize]
	g.DealerHandSize = b[recordDealerSize]
	copy(g.DeckNonce[:], b[recordDeckNonce:])
	copy(g.PlayerHandNonce[:], b[recordPlayerNonce:])
	copy(g.DealerHandNonce[:], b[recordDealerNonce:])
	g.State = GameState(b[recordState])
	g.PlayerHasStood = b[recordStood] == 1
	g.BetAmount = int64(binary.LittleEndian.Uint64(b[recordBet:]))
	if r := b[recordResult]; r != noResult {
		g.Result = &r
	}
	copy(g.PlayerKey[:], b[recordPlayerKey:])
	return g, nil
}
