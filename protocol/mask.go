package protocol

import "strings"

// FormatMask turns one or more object mask expressions into the single string
// the API expects.
//
// A lone expression that is already qualified ("mask[...]", "mask.foo",
// "filteredMask[...]") is sent untouched. Everything else is collected into
// one "mask[...]" property list. Blank expressions are ignored; if nothing
// remains the result is empty and no mask header should be sent.
func FormatMask(expressions ...string) string {
	var parts []string
	for _, e := range expressions {
		if e = strings.TrimSpace(e); e != "" {
			parts = append(parts, e)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 && isQualifiedMask(parts[0]) {
		return parts[0]
	}

	props := make([]string, 0, len(parts))
	for _, p := range parts {
		switch {
		case strings.HasPrefix(p, "mask[") && strings.HasSuffix(p, "]"):
			if inner := strings.TrimSpace(p[len("mask[") : len(p)-1]); inner != "" {
				props = append(props, inner)
			}
		case strings.HasPrefix(p, "mask."):
			props = append(props, strings.TrimPrefix(p, "mask."))
		default:
			props = append(props, p)
		}
	}
	if len(props) == 0 {
		return ""
	}
	return "mask[" + strings.Join(props, ",") + "]"
}

func isQualifiedMask(expr string) bool {
	return strings.HasPrefix(expr, "mask") || strings.HasPrefix(expr, "filteredMask")
}
