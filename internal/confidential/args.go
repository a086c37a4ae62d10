package confidential

import (
	"errors"
	"fmt"
)

type ArgKind string

const (
	ArgU8        ArgKind = "u8"
	ArgU128      ArgKind = "u128"
	ArgPublicKey ArgKind = "pubkey"
	ArgRecord    ArgKind = "record"
)

// RecordRef points at ciphertext stored in a ledger record.
type RecordRef struct {
	Key    string `json:"key"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// Argument is one entry of a request's ordered argument list.
type Argument struct {
	Kind  ArgKind    `json:"kind"`
	U8    uint8      `json:"u8,omitempty"`
	Nonce *Nonce     `json:"nonce,omitempty"`
	Key   *PublicKey `json:"key,omitempty"`
	Ref   *RecordRef `json:"ref,omitempty"`
}

func U8(v uint8) Argument { return Argument{Kind: ArgU8, U8: v} }

func U128(n Nonce) Argument { return Argument{Kind: ArgU128, Nonce: &n} }

func Key(k PublicKey) Argument { return Argument{Kind: ArgPublicKey, Key: &k} }

func Record(key string, offset, length int) Argument {
	return Argument{Kind: ArgRecord, Ref: &RecordRef{Key: key, Offset: offset, Length: length}}
}

var ErrArgument = errors.New("argument mismatch")

// Args walks an argument list in order. The first mismatch sticks and is
// reported by Err; later reads return zero values.
type Args struct {
	list []Argument
	pos  int
	err  error
}

func NewArgs(list []Argument) *Args { return &Args{list: list} }

func (a *Args) next(kind ArgKind) (Argument, bool) {
	if a.err != nil {
		return Argument{}, false
	}
	if a.pos >= len(a.list) {
		a.err = fmt.Errorf("%w: missing %s at position %d", ErrArgument, kind, a.pos)
		return Argument{}, false
	}
	arg := a.list[a.pos]
	if arg.Kind != kind {
		a.err = fmt.Errorf("%w: position %d is %s, want %s", ErrArgument, a.pos, arg.Kind, kind)
		return Argument{}, false
	}
	a.pos++
	return arg, true
}

func (a *Args) U8() uint8 {
	arg, _ := a.next(ArgU8)
	return arg.U8
}

func (a *Args) U128() Nonce {
	arg, ok := a.next(ArgU128)
	if !ok || arg.Nonce == nil {
		return Nonce{}
	}
	return *arg.Nonce
}

func (a *Args) Key() PublicKey {
	arg, ok := a.next(ArgPublicKey)
	if !ok || arg.Key == nil {
		return PublicKey{}
	}
	return *arg.Key
}

func (a *Args) Record() RecordRef {
	arg, ok := a.next(ArgRecord)
	if !ok || arg.Ref == nil {
		return RecordRef{}
	}
	return *arg.Ref
}

// Err returns the first mismatch, or an error if arguments are left over.
func (a *Args) Err() error {
	if a.err != nil {
		return a.err
	}
	if a.pos != len(a.list) {
		return fmt.Errorf("%w: %d unused arguments", ErrArgument, len(a.list)-a.pos)
	}
	return nil
}
