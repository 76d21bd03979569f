package planning

import "strings"

// TagPair delimits a meta-reasoning segment, e.g. <think>...</think>.
type TagPair struct {
	Open  string
	Close string
}

// DefaultReasoningTags covers the markers emitted by common local models.
var DefaultReasoningTags = []TagPair{
	{Open: "<think>", Close: "</think>"},
	{Open: "<thinking>", Close: "</thinking>"},
	{Open: "<reasoning>", Close: "</reasoning>"},
	{Open: "<reflection>", Close: "</reflection>"},
}

// StripReasoning removes every reasoning segment from text. Markers match
// case-insensitively at any offset and nest; an unterminated opener runs to
// end of text. A closer seen before any opener discards everything before
// it, since some chat templates inject the opener into the prompt rather
// than the output.
func StripReasoning(text string, tags []TagPair) string {
	m := newTagMatcher(tags)
	if m == nil {
		return text
	}
	lower := asciiLower(text)
	var out strings.Builder
	out.Grow(len(text))

	depth := 0
	for i := 0; i < len(text); {
		if m.first[lower[i]] {
			if n := m.match(lower[i:], m.opens); n > 0 {
				depth++
				i += n
				continue
			}
			if n := m.match(lower[i:], m.closes); n > 0 {
				if depth > 0 {
					depth--
				} else {
					out.Reset()
				}
				i += n
				continue
			}
		}
		if depth == 0 {
			out.WriteByte(text[i])
		}
		i++
	}
	return out.String()
}

// tagMatcher holds lowercased markers and the bytes any of them start with.
type tagMatcher struct {
	opens, closes []string
	first         [256]bool
}

func newTagMatcher(tags []TagPair) *tagMatcher {
	m := &tagMatcher{}
	for _, t := range tags {
		opener, closer := asciiLower(t.Open), asciiLower(t.Close)
		if opener == "" || closer == "" {
			continue
		}
		m.opens = append(m.opens, opener)
		m.closes = append(m.closes, closer)
		m.first[opener[0]] = true
		m.first[closer[0]] = true
	}
	if len(m.opens) == 0 {
		return nil
	}
	return m
}

func (m *tagMatcher) match(s string, markers []string) int {
	for _, mk := range markers {
		if strings.HasPrefix(s, mk) {
			return len(mk)
		}
	}
	return 0
}

// asciiLower lowercases ASCII letters only, so byte offsets stay aligned with
// the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
