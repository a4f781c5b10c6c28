package types

import (
	"fmt"
	"strings"
	"time"
)

// Credentials identify the mail account a session authenticates with
type Credentials struct {
	Address string `json:"address"`
	Secret  string `json:"-"`
}

// String hides the secret so credentials can be passed to loggers safely
func (c Credentials) String() string {
	if c.Secret == "" {
		return c.Address
	}
	return c.Address + " (secret redacted)"
}

// Empty reports whether either field is missing
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Address) == "" || c.Secret == ""
}

// Email represents a decoded email message.
//
// Subject, From and Body are always set (possibly empty). When the Date
// header cannot be parsed, RawDate keeps its text, DateValid is false and
// Date is the zero time so that the message sorts as the oldest.
type Email struct {
	ID        string    `json:"id,omitempty"` // IMAP sequence number, empty for file-sourced messages
	MessageID string    `json:"message_id,omitempty"`
	Subject   string    `json:"subject"`
	From      string    `json:"from"`
	RawDate   string    `json:"raw_date"`
	Date      time.Time `json:"date"`
	DateValid bool      `json:"date_valid"`
	Body      string    `json:"body"`
	RawSize   int       `json:"raw_size,omitempty"`
}

// SenderAddress returns the bare address part of From, lower-cased.
// It falls back to the whole header when no angle brackets are present.
func (e *Email) SenderAddress() string {
	from := e.From
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.Index(from[start:], ">"); end > 0 {
			from = from[start+1 : start+end]
		}
	}
	return strings.ToLower(strings.TrimSpace(from))
}

// Label is the verdict assigned to a message
type Label string

const (
	LabelPhishing Label = "Phishing"
	LabelSpam     Label = "Spam"
	LabelNormal   Label = "Normal"
)

// ParseLabel matches s against the known labels, ignoring case
func ParseLabel(s string) (Label, error) {
	for _, l := range []Label{LabelPhishing, LabelSpam, LabelNormal} {
		if strings.EqualFold(strings.TrimSpace(s), string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown label %q (want Phishing, Spam or Normal)", s)
}

// Source records which path produced a label
type Source string

const (
	SourceRemote         Source = "Remote"
	SourceLocalHeuristic Source = "LocalHeuristic"
)

// ClassificationResult is the outcome of classifying one message
type ClassificationResult struct {
	Label  Label  `json:"label"`
	Source Source `json:"source"`
}
