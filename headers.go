package imapkit

import (
	"bufio"
	"bytes"
	"io"
	"mime"
	"strings"

	"github.com/oakmoss/imapkit/internal/charset"
)

// HeaderField is one name/value pair in original wire order.
type HeaderField struct {
	Name  string
	Value string
}

// Headers is an ordered name -> decoded-value multimap: lookups are
// case-insensitive, but iteration order and duplicate occurrences match
// the wire.
type Headers struct {
	fields []HeaderField
}

// wordDecoder decodes RFC 2047 encoded-words, routing unknown charsets
// through internal/charset (which itself falls back through
// go-message/charset's alias table).
var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(cs string, input io.Reader) (io.Reader, error) {
		return charset.Reader(cs, input)
	},
}

// parseHeaders unfolds CRLF-SP/TAB continuations and splits each logical
// line into name/value on the first colon, decoding RFC 2047 encoded-words
// in the value. Returns the header block's raw bytes consumed alongside
// the parsed result is not needed by callers; pass the header-only slice.
func parseHeaders(raw []byte) (Headers, error) {
	unfolded := unfoldHeaderLines(raw)
	var h Headers
	for _, line := range unfolded {
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		decoded, err := wordDecoder.DecodeHeader(value)
		if err != nil {
			decoded = value
		}
		h.fields = append(h.fields, HeaderField{Name: strings.TrimSpace(name), Value: decoded})
	}
	return h, nil
}

// unfoldHeaderLines joins each folded header (a line followed by one or
// more lines starting with space or tab) into a single logical line.
func unfoldHeaderLines(raw []byte) []string {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += " " + strings.TrimSpace(line)
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Get returns the first value for name (case-insensitive), or "".
func (h Headers) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for name in wire order.
func (h Headers) Values(name string) []string {
	var out []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// All returns every header field in wire order, including duplicates.
func (h Headers) All() []HeaderField {
	return h.fields
}
