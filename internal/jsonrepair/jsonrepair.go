// Package jsonrepair recovers structured output from language models that
// wrap JSON in Markdown fences, stop mid-object, or leave raw newlines inside
// string values.
package jsonrepair

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// maxLoggedInput bounds how much of an unrecoverable input is logged.
const maxLoggedInput = 2048

// Parse returns the JSON value contained in raw, or nil when nothing usable
// can be recovered. It never panics.
func Parse(raw string) any {
	repaired, ok := Repair(raw)
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil
	}
	return v
}

// Decode repairs raw and unmarshals it into T. The boolean is false when the
// input could not be recovered or does not fit T.
func Decode[T any](raw string) (T, bool) {
	var out T
	repaired, ok := Repair(raw)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		slog.Warn("repaired JSON does not match target type",
			slog.String("error", err.Error()),
			slog.String("input", clip(raw)),
		)
		var zero T
		return zero, false
	}
	return out, true
}

// Repair returns a syntactically valid JSON document recovered from raw.
//
// Steps: strip code fences, cut the text from the first opening bracket to
// the last matching closer, close an open string and every open structure in
// LIFO order, then escape raw control characters that sit inside string
// content. String boundaries come from the same quote and escape tracking as
// the bracket walk, so a stray unescaped quote inside a value is not
// recoverable.
func Repair(raw string) (string, bool) {
	text := stripFences(raw)

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		logUnrecoverable(raw)
		return "", false
	}

	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	candidate := text[start:]
	if end := strings.LastIndexByte(candidate, closer); end >= 0 {
		if json.Valid([]byte(candidate[:end+1])) {
			return candidate[:end+1], true
		}
		// Only a balanced cut is trusted; a truncated body may end on an inner closer.
		if isBalanced(candidate[:end+1]) {
			candidate = candidate[:end+1]
		}
	}

	closed := closeStructures(candidate)

	repaired := escapeInStrings(closed)
	if json.Valid([]byte(repaired)) {
		return repaired, true
	}

	logUnrecoverable(raw)
	return "", false
}

func logUnrecoverable(raw string) {
	slog.Warn("unrecoverable JSON from model", slog.String("input", clip(raw)))
}

func clip(s string) string {
	if len(s) > maxLoggedInput {
		return s[:maxLoggedInput] + "..."
	}
	return s
}

// stripFences removes Markdown code fences and the language tag that follows
// the opening fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}

	rest := s[open+3:]
	line := rest
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		line = rest[:nl]
	}
	if isLanguageTag(line) {
		rest = rest[len(line):]
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func isLanguageTag(s string) bool {
	s = strings.TrimSpace(s)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}

// isBalanced reports whether s, starting with an opener, closes every
// structure it opens and does not end inside a string.
func isBalanced(s string) bool {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	return depth == 0 && !inString
}

type memberState int

const (
	memberEmpty  memberState = iota // just after an opener or a comma
	memberKey                       // object key started or complete, no colon yet
	memberColon                     // colon seen, value not started
	memberScalar                    // number or literal in progress
	memberString                    // string value in progress
	memberDone                      // value complete
)

type frame struct {
	closer byte
	object bool
	// start is where the current member begins: the offset of its leading
	// comma, or the offset just past the opener.
	start int
	// scalarStart is the offset of the number or literal in progress.
	scalarStart int
	state       memberState
}

// closeStructures completes a possibly truncated JSON text. Text after the
// point where the outermost structure closes is dropped.
func closeStructures(s string) string {
	var stack []*frame
	inString, escaped := false, false
	// lastEscape is the offset of the most recent backslash in the current string.
	lastEscape := -1

	top := func() *frame {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		f := top()

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
				lastEscape = i
			case c == '"':
				inString = false
				if f != nil && f.state == memberString {
					f.state = memberDone
				}
			}
			continue
		}

		switch c {
		case '"':
			inString = true
			lastEscape = -1
			if f != nil {
				if f.object && f.state == memberEmpty {
					f.state = memberKey
				} else {
					f.state = memberString
				}
			}
		case '{', '[':
			if f != nil {
				f.state = memberDone
			}
			nf := &frame{closer: '}', object: c == '{', start: i + 1}
			if c == '[' {
				nf.closer = ']'
			}
			stack = append(stack, nf)
		case '}', ']':
			if f == nil {
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[:i+1]
			}
		case ',':
			if f != nil {
				f.start = i
				f.state = memberEmpty
			}
		case ':':
			if f != nil {
				f.state = memberColon
			}
		case ' ', '\n', '\r', '\t':
			if f != nil && f.state == memberScalar {
				f.state = memberDone
			}
		default:
			if f != nil && f.state != memberScalar {
				f.state = memberScalar
				f.scalarStart = i
			}
		}
	}

	f := top()
	if f == nil {
		return s
	}

	out := s
	if inString {
		if escaped {
			out = out[:len(out)-1]
		} else if incompleteUnicodeEscape(s, lastEscape) {
			out = out[:lastEscape]
		}
		if f.state == memberKey {
			out = out[:f.start]
		} else {
			out += `"`
		}
	} else {
		switch f.state {
		case memberEmpty, memberKey, memberColon:
			// Drops a dangling comma or a key that never received a value.
			out = out[:f.start]
		case memberScalar:
			tok := strings.TrimRight(out[f.scalarStart:], ".eE+-")
			if tok == "" || !json.Valid([]byte(tok)) {
				out = out[:f.start]
			} else {
				out = out[:f.scalarStart] + tok
			}
		}
	}

	var sb strings.Builder
	sb.Grow(len(out) + len(stack))
	sb.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(stack[i].closer)
	}
	return sb.String()
}

// incompleteUnicodeEscape reports whether the backslash at i starts a \u
// escape that s ends before all four hex digits arrive.
func incompleteUnicodeEscape(s string, i int) bool {
	if i < 0 || i+1 >= len(s) || s[i+1] != 'u' {
		return false
	}
	return len(s)-(i+2) < 4
}

// escapeInStrings escapes raw newlines, carriage returns and tabs that occur
// inside string literals. Whitespace between tokens is left untouched.
func escapeInStrings(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			default:
				if esc, ok := controlEscape(c); ok {
					sb.WriteString(esc)
					continue
				}
			}
		} else if c == '"' {
			inString = true
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func controlEscape(c byte) (string, bool) {
	switch c {
	case '\n':
		return `\n`, true
	case '\r':
		return `\r`, true
	case '\t':
		return `\t`, true
	}
	return "", false
}
