// Package codec turns raw RFC 5322 message bytes into types.Email values.
//
// Decoding never fails as a whole: a header or part that cannot be decoded
// degrades its own field to a best-effort (possibly empty) string.
package codec

import (
	"bufio"
	"bytes"
	"net/mail"
	"net/textproto"
	"slices"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

// Decode parses raw message bytes into an Email. The returned value is
// never nil and Subject, From and Body are always set.
func Decode(raw []byte) *types.Email {
	email := &types.Email{RawSize: len(raw)}

	header := readHeader(raw)
	email.Subject = DecodeHeader(header.Get("Subject"))
	email.From = DecodeHeader(header.Get("From"))
	email.MessageID = strings.Trim(strings.TrimSpace(header.Get("Message-Id")), "<>")
	setDate(email, header.Get("Date"))

	email.Body = decodeBody(raw)
	return email
}

// readHeader returns the raw (still encoded) header fields. A malformed
// header block yields the fields read before the error.
func readHeader(raw []byte) textproto.MIMEHeader {
	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	header, _ := r.ReadMIMEHeader()
	if header == nil {
		return textproto.MIMEHeader{}
	}
	return header
}

func decodeBody(raw []byte) (body string) {
	defer func() {
		if r := recover(); r != nil {
			body = rawBody(raw)
		}
	}()

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil || env == nil || env.Root == nil {
		return rawBody(raw)
	}
	return extractBody(env.Root)
}

// extractBody applies the body policy: for multipart messages the first
// text/plain part in document order, otherwise the single payload.
func extractBody(root *enmime.Part) string {
	if !strings.HasPrefix(strings.ToLower(root.ContentType), "multipart/") {
		return lossy(string(root.Content))
	}

	part := root.DepthMatchFirst(func(p *enmime.Part) bool {
		return strings.EqualFold(p.ContentType, "text/plain")
	})
	if part == nil {
		return ""
	}
	return lossy(string(part.Content))
}

// rawBody is used when the MIME structure cannot be parsed: everything
// after the first blank line, undecoded.
func rawBody(raw []byte) string {
	for _, sep := range [][]byte{[]byte("\r\n\r\n"), []byte("\n\n")} {
		if i := bytes.Index(raw, sep); i >= 0 {
			return lossy(string(raw[i+len(sep):]))
		}
	}
	return lossy(string(raw))
}

func setDate(email *types.Email, value string) {
	email.RawDate = lossy(strings.TrimSpace(value))
	email.Date = time.Time{}
	email.DateValid = false

	if email.RawDate == "" {
		return
	}
	if t, err := mail.ParseDate(email.RawDate); err == nil {
		email.Date = t
		email.DateValid = true
	}
}

// SortByDate orders emails newest first. Emails whose date did not parse
// come after every dated email and keep their relative order.
func SortByDate(emails []*types.Email) {
	slices.SortStableFunc(emails, func(a, b *types.Email) int {
		switch {
		case a.DateValid && !b.DateValid:
			return -1
		case !a.DateValid && b.DateValid:
			return 1
		case !a.DateValid:
			return 0
		}
		return b.Date.Compare(a.Date)
	})
}
