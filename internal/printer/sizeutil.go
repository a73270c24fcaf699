package printer

import "github.com/dustin/go-humanize"

// FormatBytes returns a human-readable size in IEC units (e.g. "512 B", "1.5 KiB", "16 MiB").
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}
