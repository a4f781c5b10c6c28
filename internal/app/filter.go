package app

import (
	"strings"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/email"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

// Filter returns the messages whose subject, sender or body contains
// query, ignoring case. An empty query matches everything.
func Filter(emails []*types.Email, query string) []*types.Email {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return emails
	}

	var out []*types.Email
	for _, e := range emails {
		if strings.Contains(strings.ToLower(e.Subject), query) ||
			strings.Contains(strings.ToLower(e.From), query) ||
			strings.Contains(strings.ToLower(e.Body), query) {
			out = append(out, e)
		}
	}
	return out
}

// Guidance returns steps the user can take to fix err, or nil
func Guidance(err error) []string {
	switch {
	case email.IsAuthError(err):
		return []string{
			"The mail server rejected the credentials.",
			"For Gmail, turn on 2-Step Verification,",
			"create an App Password under Security,",
			"and sign in with the App Password instead of the account password.",
		}
	case email.IsConnectionError(err):
		return []string{
			"The mail server could not be reached.",
			"Check the internet connection and the server host and port,",
			"and make sure IMAP access is enabled for the account.",
		}
	default:
		return nil
	}
}
