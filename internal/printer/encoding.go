package printer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

var ErrEncoding = errors.New("encoding error")

const DefaultCharset = "US-ASCII"

// written in place of characters the charset can't represent
const replacementByte = '?'

var asciiNames = map[string]bool{
	"us-ascii":       true,
	"ascii":          true,
	"ansi_x3.4-1968": true,
	"iso646-us":      true,
}

// Encode converts text into the byte representation of the named charset.
// Characters the charset can't represent become '?'. An unknown or
// unsupported charset fails with ErrEncoding.
func Encode(text string, charset string) ([]byte, error) {
	if charset == "" {
		charset = DefaultCharset
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrEncoding)
	}
	if asciiNames[strings.ToLower(charset)] {
		return encodeASCII(text), nil
	}

	e, err := lookupCharset(charset)
	if err != nil {
		return nil, err
	}

	encoder := e.NewEncoder()
	if out, err := encoder.Bytes([]byte(text)); err == nil {
		return out, nil
	}

	// slow path, substitute unmappable characters one at a time
	out := make([]byte, 0, len(text))
	for _, r := range text {
		b, err := encoder.Bytes([]byte(string(r)))
		if err != nil {
			out = append(out, replacementByte)
			continue
		}
		out = append(out, b...)
	}
	return out, nil
}

func lookupCharset(charset string) (encoding.Encoding, error) {
	e, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown charset %q: %v", ErrEncoding, charset, err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: unsupported charset %q", ErrEncoding, charset)
	}
	return e, nil
}

func encodeASCII(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
		} else {
			out = append(out, replacementByte)
		}
	}
	return out
}
