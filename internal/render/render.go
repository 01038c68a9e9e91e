// Package render turns a tagged article body (as produced by
// internal/article) into presentation markup. The implementation targets
// HTML, per spec §4.I.
package render

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// ErrCorruptArchive indicates a malformed tagged field stream.
var ErrCorruptArchive = errors.New("render: corrupt article body")

// Dictionary is the lookup capability pass 2 (abbreviation expansion)
// needs: resolving another headword in the SAME dictionary and reading its
// tagged article body. *dict.Dict satisfies this directly.
type Dictionary interface {
	Lookup(word []byte) (bool, int, error)
	Data(i int) ([]byte, error)
}

type field struct {
	typ     byte
	payload []byte
}

func isUpperType(t byte) bool {
	return t >= 'A' && t <= 'Z'
}

// parseFields walks a tagged "(type, payload)..." stream, as produced by
// article.Reader.WordData.
func parseFields(body []byte) ([]field, error) {
	var fields []field
	p := body
	for len(p) > 0 {
		t := p[0]
		p = p[1:]

		if isUpperType(t) {
			if len(p) < 4 {
				return nil, fmt.Errorf("%w: truncated length-prefixed field", ErrCorruptArchive)
			}
			length := binary.BigEndian.Uint32(p)
			p = p[4:]
			if uint32(len(p)) < length {
				return nil, fmt.Errorf("%w: truncated field payload", ErrCorruptArchive)
			}
			fields = append(fields, field{typ: t, payload: p[:length]})
			p = p[length:]
			continue
		}

		nul := bytes.IndexByte(p, 0)
		if nul < 0 {
			return nil, fmt.Errorf("%w: unterminated text field", ErrCorruptArchive)
		}
		fields = append(fields, field{typ: t, payload: p[:nul]})
		p = p[nul+1:]
	}
	return fields, nil
}

var xdxfSubstitutions = []struct {
	from, to string
}{
	{"<abr>", `<font class="abbreviature">`},
	{"<tr>", `<font class="transcription">[`},
	{"</tr>", `]</font>`},
	{"<ex>", `<font class="example">`},
}

var xdxfKTag = regexp.MustCompile(`<k>.*?</k>`)

func renderXdxf(payload string) string {
	payload = xdxfKTag.ReplaceAllString(payload, "")
	for _, s := range xdxfSubstitutions {
		payload = strings.ReplaceAll(payload, s.from, s.to)
	}
	return payload
}

// pass1 walks the tagged field stream and produces the raw presentation
// text for each field per spec §4.I pass 1.
func pass1(body []byte) (string, error) {
	fields, err := parseFields(body)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for _, f := range fields {
		switch f.typ {
		case 'm', 'l', 'g':
			buf.Write(f.payload)
		case 't':
			buf.WriteString(`<font class="transcription">`)
			buf.Write(f.payload)
			buf.WriteString(`</font>`)
		case 'x':
			buf.WriteString(renderXdxf(string(f.payload)))
		case 'y':
			// consumed silently
		case 'W', 'P':
			// binary asset; referenced by the UI layer, not rendered here
		default:
			// unknown type: skip
		}
	}
	return buf.String(), nil
}

var abbreviationToken = regexp.MustCompile(`_([A-Za-z0-9]+)([.:])`)

// pass2 expands abbreviation tokens ("_foo." or "_foo:") by recursively
// looking up "foo" in the same dictionary and rendering its article
// (pass 1 only), per spec §4.I pass 2.
func pass2(text string, dict Dictionary) string {
	if dict == nil {
		return text
	}
	return abbreviationToken.ReplaceAllStringFunc(text, func(match string) string {
		sub := abbreviationToken.FindStringSubmatch(match)
		word, punct := sub[1], sub[2]

		found, pos, err := dict.Lookup([]byte(word))
		if err != nil || !found {
			return match
		}
		data, err := dict.Data(pos)
		if err != nil {
			return match
		}
		expansion, err := pass1(data)
		if err != nil {
			return match
		}

		out := `<span class="explanation">` + expansion + `</span>`
		if punct == ":" {
			out += ":"
		}
		return out
	})
}

var listMarker = regexp.MustCompile(`(\d+)([>.)])`)

type listLevel struct {
	delim byte
}

// pass3 reformats numbered-list markers into nested <ol>/<li> structure,
// per spec §4.I pass 3.
func pass3(text string) string {
	matches := listMarker.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return text
	}

	var out strings.Builder
	var stack []listLevel
	lastEnd := 0
	itemOpen := false

	for _, m := range matches {
		matchStart, matchEnd := m[0], m[1]
		numStart, numEnd := m[2], m[3]
		delim := text[m[4]]

		before := strings.TrimRight(text[lastEnd:matchStart], " \t")
		out.WriteString(before)

		n, err := strconv.Atoi(text[numStart:numEnd])
		if err != nil {
			out.WriteString(text[matchStart:matchEnd])
			lastEnd = matchEnd
			continue
		}

		switch {
		case len(stack) == 0 && n == 1:
			stack = append(stack, listLevel{delim})
			out.WriteString("<ol>")
		case len(stack) == 0:
			// A bare marker with no open list and not starting at 1 isn't a
			// list item; leave it as literal text.
			out.WriteString(text[matchStart:matchEnd])
			lastEnd = matchEnd
			continue
		case stack[len(stack)-1].delim == delim:
			if itemOpen {
				out.WriteString("</li>")
			}
		case n == 1:
			if itemOpen {
				out.WriteString("</li>")
			}
			stack = append(stack, listLevel{delim})
			out.WriteString("<ol>")
			itemOpen = false
		default:
			if itemOpen {
				out.WriteString("</li>")
			}
			stack[len(stack)-1] = listLevel{delim}
		}

		out.WriteString("<li>")
		itemOpen = true

		lastEnd = matchEnd
		for lastEnd < len(text) && (text[lastEnd] == ' ' || text[lastEnd] == '\t') {
			lastEnd++
		}
	}

	out.WriteString(text[lastEnd:])
	if itemOpen {
		out.WriteString("</li>")
	}
	for range stack {
		out.WriteString("</ol>")
	}

	return out.String()
}

var runOfBlankLines = regexp.MustCompile(`\n{2,}`)

// pass4 normalizes whitespace and transcription-bracket tokens, per spec
// §4.I pass 4.
func pass4(text string) string {
	text = strings.ReplaceAll(text, "[", `<font class="transcription">`)
	text = strings.ReplaceAll(text, "]", `</font>`)
	text = strings.ReplaceAll(text, "\t", "&nbsp;&nbsp;&nbsp;&nbsp;")
	text = runOfBlankLines.ReplaceAllString(text, "<p>")
	text = strings.ReplaceAll(text, "\n", "<br>")
	return strings.TrimSpace(text)
}

// Render runs all four passes over a tagged article body and returns the
// HTML presentation string. dict is used by pass 2 for abbreviation
// expansion; pass nil to skip it.
func Render(dict Dictionary, body []byte) (string, error) {
	p1, err := pass1(body)
	if err != nil {
		return "", err
	}
	p2 := pass2(p1, dict)
	p3 := pass3(p2)
	return pass4(p3), nil
}

// EscapeText HTML-escapes plain text, exposed for callers assembling
// markup around a rendered article (e.g. a headword title).
func EscapeText(s string) string {
	return html.EscapeString(s)
}
