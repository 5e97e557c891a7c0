package logentries

import "strings"

// LineSeparator replaces embedded newlines so a multi-line event travels as
// a single wire line (U+2028 LINE SEPARATOR).
const LineSeparator = "\u2028"

// Encode converts a queued line into its wire form: newlines replaced by
// LineSeparator, terminated by a single '\n', UTF-8 encoded.
func Encode(line string) []byte {
	return []byte(strings.ReplaceAll(line, "\n", LineSeparator) + "\n")
}

// Decode reverses Encode for a single wire line, with or without its
// trailing terminator.
func Decode(wire []byte) string {
	s := strings.TrimSuffix(string(wire), "\n")
	return strings.ReplaceAll(s, LineSeparator, "\n")
}
