package personalize

import (
	"context"
	"strings"
	"unicode"
)

const (
	refOpen = "{%"
	ifOpen  = "{if(%"
)

// render expands references in text. Inside an if/else body cond holds the
// value of the tested reference, which %% stands for, and bare %name%
// references are expanded too.
func (t *target) render(ctx context.Context, text string, cond *string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(text); {
		rest := text[i:]
		switch {
		case strings.HasPrefix(rest, ifOpen):
			blk, ok := parseIf(rest)
			if !ok {
				break
			}
			value, err := t.resolve(ctx, blk.ref)
			if err != nil {
				return "", err
			}
			body := blk.then
			if value == "" {
				body = blk.els
			}
			out, err := t.render(ctx, body, &value)
			if err != nil {
				return "", err
			}
			b.WriteString(out)
			i += blk.length
			continue

		case strings.HasPrefix(rest, refOpen):
			end := strings.Index(rest[len(refOpen):], "%}")
			if end < 0 {
				break
			}
			name := rest[len(refOpen) : len(refOpen)+end]
			if !validRef(name) {
				break
			}
			value, err := t.resolve(ctx, name)
			if err != nil {
				return "", err
			}
			b.WriteString(value)
			i += len(refOpen) + end + len("%}")
			continue

		case cond != nil && strings.HasPrefix(rest, "%%"):
			b.WriteString(*cond)
			i += 2
			continue

		case cond != nil && rest[0] == '%':
			end := strings.IndexByte(rest[1:], '%')
			if end < 0 {
				break
			}
			name := rest[1 : 1+end]
			if !validRef(name) {
				break
			}
			value, err := t.resolve(ctx, name)
			if err != nil {
				return "", err
			}
			b.WriteString(value)
			i += end + 2
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String(), nil
}

// ifBlock is a parsed {if(%ref%){then}{else}} block. The else body is
// optional.
type ifBlock struct {
	ref    string
	then   string
	els    string
	length int
}

func parseIf(s string) (ifBlock, bool) {
	refEnd := strings.Index(s[len(ifOpen):], "%)")
	if refEnd < 0 {
		return ifBlock{}, false
	}
	blk := ifBlock{ref: s[len(ifOpen) : len(ifOpen)+refEnd]}
	if !validRef(blk.ref) {
		return ifBlock{}, false
	}
	pos := skipSpaces(s, len(ifOpen)+refEnd+len("%)"))

	var ok bool
	if blk.then, pos, ok = braceBody(s, pos); !ok {
		return ifBlock{}, false
	}
	pos = skipSpaces(s, pos)
	if pos < len(s) && s[pos] == '{' {
		if blk.els, pos, ok = braceBody(s, pos); !ok {
			return ifBlock{}, false
		}
		pos = skipSpaces(s, pos)
	}
	if pos >= len(s) || s[pos] != '}' {
		return ifBlock{}, false
	}
	blk.length = pos + 1
	blk.then = trimNested(blk.then)
	blk.els = trimNested(blk.els)
	return blk, true
}

// braceBody returns the text between the brace at s[pos] and its match,
// and the index just past the closing brace.
func braceBody(s string, pos int) (string, int, bool) {
	if pos >= len(s) || s[pos] != '{' {
		return "", pos, false
	}
	depth := 0
	for i := pos; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[pos+1 : i], i + 1, true
			}
		}
	}
	return "", pos, false
}

// trimNested drops the single space allowed before a nested if block.
func trimNested(body string) string {
	if strings.HasPrefix(body, " "+ifOpen) {
		return body[1:]
	}
	return body
}

func skipSpaces(s string, pos int) int {
	for pos < len(s) && s[pos] == ' ' {
		pos++
	}
	return pos
}

func validRef(name string) bool {
	return name != "" && strings.IndexFunc(name, unicode.IsSpace) < 0
}
