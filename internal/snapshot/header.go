package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"
)

const (
	// Magic opens every binary snapshot container
	Magic = "CRSHSNAP"

	ContainerVersion uint16 = 1

	// FormatV1 is the required "format" value of JSON and YAML snapshots
	FormatV1 = "crash-snapshot/v1"

	headerSize = len(Magic) + 2 + 2 + 4

	// Payloads above this are rejected before allocation
	maxPayloadSize = 1 << 30
)

// ContainerHeader precedes the msgpack payload of a binary snapshot
type ContainerHeader struct {
	Version       uint16
	Flags         uint16
	PayloadLength uint32
}

func ParseHeader(reader *BinaryReader, source string) (*ContainerHeader, error) {
	magic, err := reader.ReadNBytes(len(Magic))
	if err != nil {
		return nil, formatErrorf(source, reader.BytesRead(), err, "unable to read magic")
	}
	if string(magic) != Magic {
		return nil, formatErrorf(source, 0, nil, "invalid magic %q", magic)
	}

	version, err := reader.ReadU2()
	if err != nil {
		return nil, formatErrorf(source, reader.BytesRead(), err, "failed to read container version")
	}
	if version != ContainerVersion {
		return nil, formatErrorf(source, int64(len(Magic)), nil, "unsupported container version %d", version)
	}

	flags, err := reader.ReadU2()
	if err != nil {
		return nil, formatErrorf(source, reader.BytesRead(), err, "failed to read flags")
	}

	length, err := reader.ReadU4()
	if err != nil {
		return nil, formatErrorf(source, reader.BytesRead(), err, "failed to read payload length")
	}
	if length > maxPayloadSize {
		return nil, formatErrorf(source, int64(len(Magic)+4), nil, "payload length %d exceeds limit", length)
	}

	return &ContainerHeader{
		Version:       version,
		Flags:         flags,
		PayloadLength: length,
	}, nil
}

func (h *ContainerHeader) bytes() []byte {
	buf := make([]byte, headerSize)
	copy(buf, Magic)
	binary.BigEndian.PutUint16(buf[len(Magic):], h.Version)
	binary.BigEndian.PutUint16(buf[len(Magic)+2:], h.Flags)
	binary.BigEndian.PutUint32(buf[len(Magic)+4:], h.PayloadLength)
	return buf
}

func newHeader(payload []byte) (*ContainerHeader, error) {
	length, err := safecast.Conv[uint32](len(payload))
	if err != nil || length > maxPayloadSize {
		return nil, fmt.Errorf("payload of %d bytes does not fit the container", len(payload))
	}
	return &ContainerHeader{Version: ContainerVersion, PayloadLength: length}, nil
}

func hasMagic(data []byte) bool {
	return bytes.HasPrefix(data, []byte(Magic))
}
