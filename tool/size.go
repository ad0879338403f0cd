package tool

import "github.com/dustin/go-humanize"

// HumanBytes renders a byte count in IEC units, e.g. "10 MiB".
func HumanBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}
