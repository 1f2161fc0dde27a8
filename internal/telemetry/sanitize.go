package telemetry

import "strings"

const maxSanitizedLen = 100

// Sanitize turns an OTel metric or attribute name into a Prometheus-safe
// one: every character outside [A-Za-z0-9_] becomes '_', a leading digit
// gets a "key_" prefix, a leading '_' gets a "key" prefix, and the result is
// cut to 100 characters. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(name string) string {
	if name == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(name) + len("key_"))

	switch first := name[0]; {
	case first >= '0' && first <= '9':
		b.WriteString("key_")
	case !isAlphanumeric(first):
		b.WriteString("key")
	}

	for _, r := range name {
		if r < 0x80 && isAlphanumeric(byte(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	out := b.String()
	if len(out) > maxSanitizedLen {
		out = out[:maxSanitizedLen]
	}
	return out
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
