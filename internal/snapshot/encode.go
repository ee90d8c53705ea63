package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode writes snap as a binary container
func Encode(w io.Writer, snap *CrashSnapshot) error {
	payload, err := marshalPayload(snap)
	if err != nil {
		return err
	}

	header, err := newHeader(payload)
	if err != nil {
		return err
	}

	if _, err := w.Write(header.bytes()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

// Digest identifies a snapshot by content. Equal snapshots share a digest;
// Registers sorts its own keys since SetSortMapKeys only covers builtin map types.
func Digest(snap *CrashSnapshot) (string, error) {
	payload, err := marshalPayload(snap)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func marshalPayload(snap *CrashSnapshot) ([]byte, error) {
	var buf bytes.Buffer

	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)

	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}
