package snapshot

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

// Registers maps register names to values. The binary encoding writes names
// in sorted order so the payload, and with it Digest, is stable.
type Registers map[string]Address

// Names returns the register names sorted
func (r Registers) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

func (r Registers) EncodeMsgpack(enc *msgpack.Encoder) error {
	if r == nil {
		return enc.EncodeNil()
	}
	if err := enc.EncodeMapLen(len(r)); err != nil {
		return err
	}
	for _, name := range r.Names() {
		if err := enc.EncodeString(name); err != nil {
			return err
		}
		if err := enc.EncodeUint(uint64(r[name])); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registers) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if n == -1 {
		*r = nil
		return nil
	}

	regs := make(Registers, n)
	for range n {
		name, err := dec.DecodeString()
		if err != nil {
			return fmt.Errorf("register name: %w", err)
		}
		v, err := dec.DecodeUint64()
		if err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
		regs[name] = Address(v)
	}
	*r = regs
	return nil
}
