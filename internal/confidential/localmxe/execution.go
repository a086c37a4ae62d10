package localmxe

import (
	"context"
	"fmt"

	"casino-backend/internal/cards"
	"casino-backend/internal/confidential"
)

type execution struct {
	cluster *Cluster
	ctx     context.Context
	args    *confidential.Args
	records map[string][]byte
}

// sealed is a ciphertext argument: the key it is encrypted to, its nonce and
// where it lives.
type sealed struct {
	key   confidential.PublicKey
	nonce confidential.Nonce
	ref   confidential.RecordRef
}

func (e *execution) clusterInput() sealed {
	return sealed{key: e.cluster.keys.Public, nonce: e.args.U128(), ref: e.args.Record()}
}

func (e *execution) sharedInput() sealed {
	k := e.args.Key()
	return sealed{key: k, nonce: e.args.U128(), ref: e.args.Record()}
}

func (e *execution) size() int { return int(e.args.U8()) }

func (e *execution) cipher(peer confidential.PublicKey) (*confidential.Cipher, error) {
	return confidential.NewCipher(e.cluster.keys.Private, peer)
}

func (e *execution) fetch(ref confidential.RecordRef) ([]confidential.Ciphertext, error) {
	data, ok := e.records[ref.Key]
	if !ok {
		var err error
		data, err = e.cluster.records.ReadRecord(e.ctx, ref.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to read record %s: %w", ref.Key, err)
		}
		e.records[ref.Key] = data
	}
	if ref.Offset < 0 || ref.Length <= 0 || ref.Length%cards.BlockSize != 0 || ref.Offset+ref.Length > len(data) {
		return nil, fmt.Errorf("reference %s[%d:+%d] outside record of %d bytes", ref.Key, ref.Offset, ref.Length, len(data))
	}
	cts := make([]confidential.Ciphertext, ref.Length/cards.BlockSize)
	for i := range cts {
		copy(cts[i][:], data[ref.Offset+i*cards.BlockSize:])
	}
	return cts, nil
}

func (e *execution) open(in sealed) ([]cards.Block, error) {
	cts, err := e.fetch(in.ref)
	if err != nil {
		return nil, err
	}
	c, err := e.cipher(in.key)
	if err != nil {
		return nil, err
	}
	return c.Open(in.nonce, cts)
}

func (e *execution) openDeck(in sealed) ([cards.DeckSize]cards.Card, error) {
	blocks, err := e.open(in)
	if err != nil {
		return [cards.DeckSize]cards.Card{}, err
	}
	if len(blocks) != 3 {
		return [cards.DeckSize]cards.Card{}, fmt.Errorf("deck reference has %d blocks", len(blocks))
	}
	d, err := cards.DeckFromBlocks([3]cards.Block{blocks[0], blocks[1], blocks[2]})
	if err != nil {
		return [cards.DeckSize]cards.Card{}, fmt.Errorf("deck: %w", err)
	}
	return d.Cards(), nil
}

func (e *execution) openHand(in sealed) ([cards.HandSlots]cards.Card, error) {
	blocks, err := e.open(in)
	if err != nil {
		return [cards.HandSlots]cards.Card{}, err
	}
	if len(blocks) != 1 {
		return [cards.HandSlots]cards.Card{}, fmt.Errorf("hand reference has %d blocks", len(blocks))
	}
	h, err := cards.HandFromBlock(blocks[0])
	if err != nil {
		return [cards.HandSlots]cards.Card{}, fmt.Errorf("hand: %w", err)
	}
	return h.Cards(), nil
}

func (e *execution) sealHand(to confidential.PublicKey, nonce confidential.Nonce, hand [cards.HandSlots]cards.Card) (confidential.EncryptedField, error) {
	packed, err := cards.PackHand(hand[:])
	if err != nil {
		return confidential.EncryptedField{}, err
	}
	c, err := e.cipher(to)
	if err != nil {
		return confidential.EncryptedField{}, err
	}
	return c.SealField(to, nonce, packed.Block())
}

func boolValue(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// deal args: deck nonce, dealer nonce, player key + nonce, up-card key + nonce.
func (e *execution) deal() (confidential.Outcome, error) {
	deckNonce := e.args.U128()
	dealerNonce := e.args.U128()
	playerKey, playerNonce := e.args.Key(), e.args.U128()
	upKey, upNonce := e.args.Key(), e.args.U128()
	if err := e.args.Err(); err != nil {
		return confidential.Outcome{}, err
	}

	deck, err := e.cluster.shuffle()
	if err != nil {
		return confidential.Outcome{}, err
	}
	d := deal(deck)

	packed, err := cards.PackDeck(d.deck)
	if err != nil {
		return confidential.Outcome{}, err
	}
	self, err := e.cipher(e.cluster.keys.Public)
	if err != nil {
		return confidential.Outcome{}, err
	}
	blocks := packed.Blocks()
	deckField, err := self.SealField(e.cluster.keys.Public, deckNonce, blocks[:]...)
	if err != nil {
		return confidential.Outcome{}, err
	}
	dealerField, err := e.sealHand(e.cluster.keys.Public, dealerNonce, d.dealer)
	if err != nil {
		return confidential.Outcome{}, err
	}
	playerField, err := e.sealHand(playerKey, playerNonce, d.player)
	if err != nil {
		return confidential.Outcome{}, err
	}
	upField, err := e.sealHand(upKey, upNonce, d.up)
	if err != nil {
		return confidential.Outcome{}, err
	}

	return confidential.Outcome{
		Fields: []confidential.EncryptedField{deckField, dealerField, playerField, upField},
	}, nil
}

// hit and double-down args: deck, player hand, player size, dealer size.
func (e *execution) draw() (confidential.Outcome, error) {
	deckIn := e.clusterInput()
	playerIn := e.sharedInput()
	playerSize, dealerSize := e.size(), e.size()
	if err := e.args.Err(); err != nil {
		return confidential.Outcome{}, err
	}

	deck, err := e.openDeck(deckIn)
	if err != nil {
		return confidential.Outcome{}, err
	}
	hand, err := e.openHand(playerIn)
	if err != nil {
		return confidential.Outcome{}, err
	}

	hand, bust, err := draw(deck, hand, playerSize, dealerSize)
	if err != nil {
		return confidential.Outcome{}, err
	}
	field, err := e.sealHand(playerIn.key, playerIn.nonce.Next(), hand)
	if err != nil {
		return confidential.Outcome{}, err
	}
	return confidential.Outcome{
		Fields:   []confidential.EncryptedField{field},
		Revealed: []uint64{boolValue(bust)},
	}, nil
}

// stand args: player hand, player size.
func (e *execution) stand() (confidential.Outcome, error) {
	playerIn := e.sharedInput()
	playerSize := e.size()
	if err := e.args.Err(); err != nil {
		return confidential.Outcome{}, err
	}
	hand, err := e.openHand(playerIn)
	if err != nil {
		return confidential.Outcome{}, err
	}
	return confidential.Outcome{Revealed: []uint64{boolValue(playerBust(hand, playerSize))}}, nil
}

// dealer play args: deck, dealer hand, client key + nonce, player size, dealer size.
func (e *execution) dealerPlay() (confidential.Outcome, error) {
	deckIn := e.clusterInput()
	dealerIn := e.clusterInput()
	clientKey, clientNonce := e.args.Key(), e.args.U128()
	playerSize, dealerSize := e.size(), e.size()
	if err := e.args.Err(); err != nil {
		return confidential.Outcome{}, err
	}

	deck, err := e.openDeck(deckIn)
	if err != nil {
		return confidential.Outcome{}, err
	}
	hand, err := e.openHand(dealerIn)
	if err != nil {
		return confidential.Outcome{}, err
	}

	hand, size := dealerPlay(deck, hand, playerSize, dealerSize)
	own, err := e.sealHand(e.cluster.keys.Public, dealerIn.nonce.Next(), hand)
	if err != nil {
		return confidential.Outcome{}, err
	}
	client, err := e.sealHand(clientKey, clientNonce, hand)
	if err != nil {
		return confidential.Outcome{}, err
	}
	return confidential.Outcome{
		Fields:   []confidential.EncryptedField{own, client},
		Revealed: []uint64{uint64(size)},
	}, nil
}

// resolve args: player hand, dealer hand, player size, dealer size.
func (e *execution) resolve() (confidential.Outcome, error) {
	playerIn := e.sharedInput()
	dealerIn := e.clusterInput()
	playerSize, dealerSize := e.size(), e.size()
	if err := e.args.Err(); err != nil {
		return confidential.Outcome{}, err
	}
	player, err := e.openHand(playerIn)
	if err != nil {
		return confidential.Outcome{}, err
	}
	dealer, err := e.openHand(dealerIn)
	if err != nil {
		return confidential.Outcome{}, err
	}
	return confidential.Outcome{Revealed: []uint64{resolve(player, dealer, playerSize, dealerSize)}}, nil
}
