package planning

// region is a bracketed span of text. closed is false when the text ended
// before the outermost bracket was balanced.
type region struct {
	start, end int
	closed     bool
}

// scanRegions finds the outermost {...} and [...] spans in s. String
// literals are only tracked inside a region, so quotes and apostrophes in
// surrounding prose cannot swallow a structure. Stray closers outside a
// region are ignored; a mismatched closer inside one pops the innermost
// bracket anyway.
//
// Bytes are scanned directly: UTF-8 never uses ASCII bytes inside
// multi-byte sequences, so the delimiters cannot be misread.
func scanRegions(s string, limit int) []region {
	var out []region
	var stack []byte
	start := -1
	inString, escape := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if len(stack) > 0 {
				inString = true
			}
		case '{', '[':
			if len(stack) == 0 {
				start = i
			}
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				out = append(out, region{start: start, end: i + 1, closed: true})
				if limit > 0 && len(out) >= limit {
					return out
				}
			}
		}
	}
	if len(stack) > 0 {
		out = append(out, region{start: start, end: len(s), closed: false})
	}
	return out
}

func closerFor(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}

type frame struct {
	kind      byte
	expectKey bool
}

// maxNesting matches the decoder's own depth limit; anything deeper cannot
// parse however it is closed.
const maxNesting = 10000

// closeTruncated repairs a structure cut off mid-stream. It backs up to the
// last point where a value was complete (never inside a string, after a
// dangling key, or at the end of a number that may itself be cut short) and
// appends the closers still open at that point. ok is false when s needs no
// closing, nests deeper than maxNesting, or holds nothing salvageable.
//
// Every push and pop marks a cut, so the frames open at the last cut are
// exactly the first cutDepth frames of the final stack.
func closeTruncated(s string) (string, bool) {
	var stack []frame
	cut, cutDepth := -1, 0

	mark := func(pos int) {
		cut, cutDepth = pos, len(stack)
	}

	inString, escape, stringIsValue := false, false, false
	inLiteral := false

	endLiteral := func(pos int) {
		if inLiteral {
			inLiteral = false
			mark(pos)
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
				if stringIsValue {
					mark(i + 1)
				}
			}
			continue
		}
		switch c {
		case '"':
			endLiteral(i)
			inString = true
			stringIsValue = len(stack) == 0 || !(stack[len(stack)-1].kind == '{' && stack[len(stack)-1].expectKey)
		case '{', '[':
			endLiteral(i)
			if len(stack) >= maxNesting {
				return "", false
			}
			stack = append(stack, frame{kind: c, expectKey: c == '{'})
			mark(i + 1)
		case '}', ']':
			endLiteral(i)
			if len(stack) == 0 {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				// balanced before the end: nothing to close
				return "", false
			}
			mark(i + 1)
		case ':':
			endLiteral(i)
			if len(stack) > 0 {
				stack[len(stack)-1].expectKey = false
			}
		case ',':
			endLiteral(i)
			if len(stack) > 0 && stack[len(stack)-1].kind == '{' {
				stack[len(stack)-1].expectKey = true
			}
		case ' ', '\t', '\n', '\r':
			endLiteral(i)
		default:
			if len(stack) > 0 {
				inLiteral = true
			}
		}
	}
	if len(stack) == 0 || cut < 0 || cutDepth == 0 {
		return "", false
	}

	out := make([]byte, 0, cut+cutDepth)
	out = append(out, s[:cut]...)
	for i := cutDepth - 1; i >= 0; i-- {
		out = append(out, closerFor(stack[i].kind))
	}
	return string(out), true
}

// leadingRegion returns the first balanced structure in s when s carries
// trailing text after it.
func leadingRegion(s string) (string, bool) {
	rs := scanRegions(s, 1)
	if len(rs) == 0 || !rs[0].closed {
		return "", false
	}
	lead := s[rs[0].start:rs[0].end]
	if lead == s {
		return "", false
	}
	return lead, true
}
