// Package sizefmt formats byte counts for boot-log output.
package sizefmt

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Bytes formats n as a human-readable size ("16.0 MiB", "512 B"), using
// golang.org/x/text/message so the boot log formats numbers the same
// locale-aware way as everything else that goes through a
// Printer, rather than a one-off fmt.Sprintf.
func Bytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return printer.Sprintf("%d B", n)
	}

	div, exp := uint64(unit), 0
	for n/div >= unit && exp < 4 {
		div *= unit
		exp++
	}
	units := "KMGTP"
	return printer.Sprintf("%.1f %ciB", float64(n)/float64(div), units[exp])
}
