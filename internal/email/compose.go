package email

import (
	"bytes"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// OutgoingMessage is a plain-text message to submit
type OutgoingMessage struct {
	From      string
	To        []string
	Subject   string
	Body      string
	InReplyTo string
}

// ParseRecipients splits a comma-separated address list
func ParseRecipients(list string) ([]string, error) {
	addrs, err := netmail.ParseAddressList(list)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient list %q: %w", list, err)
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address)
	}
	return out, nil
}

// ReplySubject prefixes "Re: " unless the subject is already a reply
func ReplySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// Compose renders msg as a single text/plain part with From, To, Subject,
// Date and Message-ID headers. Non-ASCII subjects are RFC 2047 encoded.
func Compose(msg *OutgoingMessage) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	from, err := netmail.ParseAddress(msg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}

	to := make([]*mail.Address, 0, len(msg.To))
	for _, rcpt := range msg.To {
		addr, err := netmail.ParseAddress(rcpt)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", rcpt, err)
		}
		to = append(to, (*mail.Address)(addr))
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{(*mail.Address)(from)})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate Message-ID: %w", err)
	}
	if msg.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{msg.InReplyTo})
		h.SetMsgIDList("References", []string{msg.InReplyTo})
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := w.Write([]byte(msg.Body)); err != nil {
		return nil, fmt.Errorf("failed to write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	return buf.Bytes(), nil
}
