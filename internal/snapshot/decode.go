package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

type encoding int

const (
	encodingUnknown encoding = iota
	encodingBinary
	encodingJSON
	encodingYAML
)

func (e encoding) String() string {
	switch e {
	case encodingBinary:
		return "binary"
	case encodingJSON:
		return "json"
	case encodingYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// DecodeFile reads and decodes the snapshot at path
func DecodeFile(path string) (*CrashSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Decode(data, path)
}

// Decode sniffs the encoding of data, decodes it and validates the result.
// Every failure is a *FormatError.
func Decode(data []byte, source string) (*CrashSnapshot, error) {
	var (
		snap *CrashSnapshot
		err  error
	)

	switch sniff(data) {
	case encodingBinary:
		snap, err = decodeBinary(data, source)
	case encodingJSON:
		snap, err = decodeJSON(data, source)
	case encodingYAML:
		snap, err = decodeYAML(data, source)
	default:
		return nil, formatErrorf(source, 0, nil, "unrecognized signature")
	}
	if err != nil {
		return nil, err
	}

	snap.normalize()

	if err := snap.Validate(); err != nil {
		return nil, formatErrorf(source, -1, err, "invalid content")
	}
	return snap, nil
}

func sniff(data []byte) encoding {
	if hasMagic(data) {
		return encodingBinary
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) == 0 {
		return encodingUnknown
	}

	switch c := trimmed[0]; {
	case c == '{':
		return encodingJSON
	case c == '#' || c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		return encodingYAML
	}
	return encodingUnknown
}

func decodeBinary(data []byte, source string) (*CrashSnapshot, error) {
	reader := NewBinaryReader(bytes.NewReader(data))

	header, err := ParseHeader(reader, source)
	if err != nil {
		return nil, err
	}

	n, err := safecast.Conv[int](header.PayloadLength)
	if err != nil {
		return nil, formatErrorf(source, int64(headerSize), err, "payload length %d out of range", header.PayloadLength)
	}

	payload, err := reader.ReadNBytes(n)
	if err != nil {
		return nil, formatErrorf(source, reader.BytesRead(), err, "truncated payload, want %d bytes", n)
	}

	if trailing, _ := reader.Remaining(); trailing > 0 {
		return nil, formatErrorf(source, int64(headerSize+n), nil, "%d trailing bytes after payload", trailing)
	}

	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.SetCustomStructTag("json")

	var snap CrashSnapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, formatErrorf(source, int64(headerSize), err, "malformed payload")
	}
	if snap.Format == "" {
		snap.Format = FormatV1
	}
	return &snap, nil
}

func decodeJSON(data []byte, source string) (*CrashSnapshot, error) {
	var snap CrashSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		offset := int64(-1)
		if syntaxErr, ok := err.(*json.SyntaxError); ok {
			offset = syntaxErr.Offset
		}
		return nil, formatErrorf(source, offset, err, "malformed json document")
	}

	if snap.Format != FormatV1 {
		return nil, formatErrorf(source, -1, nil, "unsupported format %q, want %q", snap.Format, FormatV1)
	}
	return &snap, nil
}

// YAML is converted to JSON first so both text encodings share one set of
// field names and the Address hex handling.
func decodeYAML(data []byte, source string) (*CrashSnapshot, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, formatErrorf(source, -1, err, "malformed yaml document")
	}
	if doc == nil {
		return nil, formatErrorf(source, 0, nil, "empty yaml document")
	}

	converted, err := json.Marshal(doc)
	if err != nil {
		return nil, formatErrorf(source, -1, err, "yaml document is not representable as json")
	}
	return decodeJSON(converted, source)
}

// normalize fills derived fields the producer may have left out
func (s *CrashSnapshot) normalize() {
	for i := range s.Modules {
		m := &s.Modules[i]
		if m.EndAddress == 0 && m.Size > 0 {
			m.EndAddress = m.BaseAddress + Address(m.Size)
		}
		if m.Size == 0 && m.EndAddress > m.BaseAddress {
			m.Size = uint64(m.EndAddress - m.BaseAddress)
		}
	}
}
