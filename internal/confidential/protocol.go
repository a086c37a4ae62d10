package confidential

import (
	"context"
	"errors"
	"fmt"
)

// Request is one fire-and-forget computation. The handle is chosen by the
// caller so the pending step can be persisted before dispatch.
type Request struct {
	Handle          string     `json:"handle"`
	Circuit         Circuit    `json:"circuit"`
	Args            []Argument `json:"args"`
	CallbackRecords []string   `json:"callback_records"`
}

// Dispatcher queues computations on the confidential service. A nil error only
// means the request was accepted; the result arrives later as a Settlement.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
	ClusterKey() PublicKey
}

// EncryptedField is a ciphertext together with the nonce and recipient key
// needed to open it.
type EncryptedField struct {
	Recipient   PublicKey    `json:"recipient"`
	Nonce       Nonce        `json:"nonce"`
	Ciphertexts []Ciphertext `json:"ciphertexts"`
}

// Outcome is either an abort marker or a circuit-specific success payload.
type Outcome struct {
	Aborted  bool             `json:"aborted"`
	Reason   string           `json:"reason,omitempty"`
	Fields   []EncryptedField `json:"fields,omitempty"`
	Revealed []uint64         `json:"revealed,omitempty"`
}

// Settlement is the single callback delivered for a dispatched request.
type Settlement struct {
	Handle  string   `json:"handle"`
	Circuit Circuit  `json:"circuit"`
	Records []string `json:"records"`
	Outcome Outcome  `json:"outcome"`
}

// SettlementHandler consumes settlements.
type SettlementHandler interface {
	Settle(ctx context.Context, s Settlement) error
}

var ErrShape = errors.New("payload shape mismatch")

// Aborted builds an abort outcome.
func Aborted(reason string) Outcome {
	return Outcome{Aborted: true, Reason: reason}
}

// Check verifies a success payload against shape.
func (o Outcome) Check(shape Shape) error {
	if o.Aborted {
		return nil
	}
	if len(o.Fields) != len(shape.Fields) {
		return fmt.Errorf("%w: %d fields, want %d", ErrShape, len(o.Fields), len(shape.Fields))
	}
	for i, n := range shape.Fields {
		if got := len(o.Fields[i].Ciphertexts); got != n {
			return fmt.Errorf("%w: field %d has %d blocks, want %d", ErrShape, i, got, n)
		}
	}
	if len(o.Revealed) != shape.Revealed {
		return fmt.Errorf("%w: %d revealed values, want %d", ErrShape, len(o.Revealed), shape.Revealed)
	}
	return nil
}
