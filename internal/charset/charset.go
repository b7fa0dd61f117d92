// Package charset resolves IMAP/MIME charset names to UTF-8 decoders. It
// wraps golang.org/x/text/encoding/htmlindex for the common case and falls
// back to github.com/emersion/go-message/charset's broader alias table so
// uncommon legacy charsets (seen in the wild far more than RFC 2047
// examples suggest) still resolve.
package charset

import (
	"fmt"
	"io"
	"strings"

	gomsgcharset "github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Reader wraps r, decoding bytes in the named charset to UTF-8. utf-8 and
// us-ascii pass through unchanged. Falls back to go-message/charset's wider
// alias table before giving up.
func Reader(name string, r io.Reader) (io.Reader, error) {
	enc, err := resolve(name)
	if err != nil {
		if gr, gerr := gomsgcharset.Reader(name, r); gerr == nil {
			return gr, nil
		}
		return nil, err
	}
	if enc == nil {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// Decode decodes b from the named charset to a UTF-8 string.
func Decode(name string, b []byte) (string, error) {
	r, err := Reader(name, strings.NewReader(string(b)))
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("charset: decode %q: %w", name, err)
	}
	return string(out), nil
}

func resolve(name string) (encoding.Encoding, error) {
	cs := strings.ToLower(strings.TrimSpace(name))
	if cs == "" || cs == "utf-8" || cs == "utf8" || cs == "us-ascii" || cs == "ascii" {
		return nil, nil
	}
	if enc, err := htmlindex.Get(cs); err == nil {
		return enc, nil
	}
	return nil, fmt.Errorf("charset: unsupported charset %q", name)
}
