package snapshot

import (
	"bufio"
	"encoding/binary"
	"io"
)

// BinaryReader reads big-endian container fields and tracks the offset,
// so decode errors can point at the byte that failed.
type BinaryReader struct {
	reader    *bufio.Reader
	bytesRead int64
}

func NewBinaryReader(reader io.Reader) *BinaryReader {
	return &BinaryReader{
		reader: bufio.NewReader(reader),
	}
}

func (br *BinaryReader) BytesRead() int64 {
	return br.bytesRead
}

// ReadNBytes reads exactly n bytes
func (br *BinaryReader) ReadNBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(br.reader, buf)
	br.bytesRead += int64(read)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (br *BinaryReader) ReadU2() (uint16, error) {
	buf, err := br.ReadNBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

func (br *BinaryReader) ReadU4() (uint32, error) {
	buf, err := br.ReadNBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// Remaining drains the reader and reports how many bytes were left
func (br *BinaryReader) Remaining() (int64, error) {
	n, err := io.Copy(io.Discard, br.reader)
	br.bytesRead += n
	return n, err
}
