package protocol

import (
	"strings"
	"unicode"
)

// Underscore converts a conventional method name into the lower-case,
// underscore-separated form the SOAP transport dispatches on:
//
//	getOpenTickets -> get_open_tickets
//	getIPAddress   -> get_ip_address
func Underscore(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
