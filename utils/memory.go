package utils

import (
	"fmt"

	"fortio.org/safecast"
)

// MemorySize represents a memory size in bytes
type MemorySize int64

const (
	Byte MemorySize = 1
	KB   MemorySize = 1024 * Byte
	MB   MemorySize = 1024 * KB
	GB   MemorySize = 1024 * MB
	TB   MemorySize = 1024 * GB
)

// SizeOf converts an unsigned byte count such as a module or stack size.
// Counts beyond int64 saturate.
func SizeOf(n uint64) MemorySize {
	v, err := safecast.Conv[int64](n)
	if err != nil {
		return MemorySize(1<<63 - 1)
	}
	return MemorySize(v)
}

// String returns a human-readable representation of the memory size
func (m MemorySize) String() string {
	if m <= 0 {
		return "0B"
	}

	formatValue := func(val float64, unit string) string {
		if val == float64(int64(val)) {
			return fmt.Sprintf("%.0f%s", val, unit)
		}
		return fmt.Sprintf("%.2f%s", val, unit)
	}

	switch {
	case m >= TB:
		return formatValue(float64(m)/float64(TB), "T")
	case m >= GB:
		return formatValue(float64(m)/float64(GB), "G")
	case m >= MB:
		return formatValue(float64(m)/float64(MB), "M")
	case m >= KB:
		return formatValue(float64(m)/float64(KB), "K")
	default:
		return fmt.Sprintf("%dB", m)
	}
}
