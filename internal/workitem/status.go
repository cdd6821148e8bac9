package workitem

import "strings"

// NormalizeStatus canonicalizes a free-form status label into a snake_case
// token: lower-cased, every run of non-alphanumerics collapsed to a single
// underscore, leading/trailing underscores trimmed. Empty input (or input
// with no alphanumerics at all) normalizes to "todo".
func NormalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "todo"
	}
	return b.String()
}
