package codec

import (
	"io"
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
)

// encodedWord matches one RFC 2047 encoded word: =?charset?enc?text?=
var encodedWord = regexp.MustCompile(`=\?([^?\s]+)\?([bBqQ])\?([^?\s]*)\?=`)

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// charsetReader converts to UTF-8 using the charsets registered by
// go-message. Unknown charsets pass the raw bytes through; the caller
// replaces whatever is not valid UTF-8.
func charsetReader(name string, input io.Reader) (io.Reader, error) {
	r, err := charset.Reader(name, input)
	if err != nil {
		return input, nil
	}
	return r, nil
}

type fragment struct {
	text    string
	charset string // empty for unencoded text
}

// DecodeHeader decodes a header value that may mix plain text and encoded
// words in several charsets. Adjacent words in the same charset are
// concatenated; all other fragments are joined with a single space.
func DecodeHeader(value string) string {
	value = strings.NewReplacer("\r\n", "", "\n", "").Replace(value)
	if !strings.Contains(value, "=?") {
		return lossy(strings.TrimSpace(value))
	}

	var frags []fragment
	pos := 0
	for _, m := range encodedWord.FindAllStringSubmatchIndex(value, -1) {
		if plain := strings.TrimSpace(value[pos:m[0]]); plain != "" {
			frags = append(frags, fragment{text: plain})
		}
		pos = m[1]

		word := value[m[0]:m[1]]
		cs := strings.ToLower(value[m[2]:m[3]])

		decoded, err := wordDecoder.Decode(word)
		if err != nil {
			// Malformed word: keep it verbatim
			frags = append(frags, fragment{text: word})
			continue
		}

		if n := len(frags); n > 0 && frags[n-1].charset == cs {
			frags[n-1].text += decoded
			continue
		}
		frags = append(frags, fragment{text: decoded, charset: cs})
	}
	if plain := strings.TrimSpace(value[pos:]); plain != "" {
		frags = append(frags, fragment{text: plain})
	}

	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, f.text)
	}
	return lossy(strings.Join(parts, " "))
}

// lossy replaces invalid UTF-8 sequences with U+FFFD
func lossy(s string) string {
	return strings.ToValidUTF8(s, "�")
}
