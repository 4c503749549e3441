package memsize

import "fmt"

// Defines the number of bytes in each unit.
const (
	B uint64 = 1 << (10 * iota)
	KB
	MB
	GB
	TB
)

// Format returns a human readable representation of b, scaled to the
// largest unit it spans.
func Format(b uint64) string {
	if b == 0 {
		return "0B"
	}
	unit, n := "B", B
	switch {
	case b >= TB:
		unit, n = "TB", TB
	case b >= GB:
		unit, n = "GB", GB
	case b >= MB:
		unit, n = "MB", MB
	case b >= KB:
		unit, n = "KB", KB
	}
	return fmt.Sprintf("%.2f%s", float64(b)/float64(n), unit)
}
