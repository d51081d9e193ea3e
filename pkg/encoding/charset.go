// Package encoding converts manifest text (UTF-8) into the byte encoding the
// client uses for file names, and back for display.
package encoding

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/unicode/norm"
)

// ErrUnencodable is returned for names the client code page cannot represent.
var ErrUnencodable = errors.New("name not representable in client charset")

// Charset is a client code page.
type Charset struct {
	name string
	enc  encoding.Encoding
}

var (
	// Windows1252 is the code page of western clients and the default.
	Windows1252 = &Charset{name: "windows-1252", enc: charmap.Windows1252}
	// EUCKR is the code page of Korean clients.
	EUCKR = &Charset{name: "euc-kr", enc: korean.EUCKR}
)

// Lookup returns the charset with the given name. Empty means Windows1252.
func Lookup(name string) (*Charset, error) {
	switch strings.ToLower(name) {
	case "", "windows-1252", "cp1252":
		return Windows1252, nil
	case "euc-kr", "cp949":
		return EUCKR, nil
	default:
		return nil, fmt.Errorf("unknown charset: %s", name)
	}
}

// Name returns the canonical charset name.
func (c *Charset) Name() string {
	return c.name
}

// Encode converts UTF-8 text to the code page. ASCII passes through unchanged.
func (c *Charset) Encode(s string) (string, error) {
	if isASCII(s) {
		return s, nil
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: %q is not UTF-8", ErrUnencodable, s)
	}
	out, err := c.enc.NewEncoder().String(norm.NFC.String(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q in %s", ErrUnencodable, s, c.name)
	}
	return out, nil
}

// Decode converts code page bytes to UTF-8. Returns the input unchanged if
// conversion fails.
func (c *Charset) Decode(raw string) string {
	if isASCII(raw) {
		return raw
	}
	out, err := c.enc.NewDecoder().String(raw)
	if err != nil {
		return raw
	}
	return out
}

// ClientPath encodes a file name for the client: backslash separators in the
// client code page.
func (c *Charset) ClientPath(name string) (string, error) {
	return c.Encode(strings.ReplaceAll(name, "/", "\\"))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
