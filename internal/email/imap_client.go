package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/config"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

const inboxName = "INBOX"

// mailbox is the read side of a session
type mailbox interface {
	SelectInbox(ctx context.Context) (uint32, error)
	SearchAll(ctx context.Context) ([]uint32, error)
	FetchRaw(ctx context.Context, seqNum uint32) ([]byte, error)
	Alive() bool
	Logout() error
}

type mailboxDialer func(ctx context.Context, srv config.ServerConfig, creds types.Credentials, logger *logrus.Logger) (mailbox, error)

// IMAPClient wraps an authenticated IMAP connection
type IMAPClient struct {
	client *client.Client
	addr   string
	logger *logrus.Logger
}

// DialIMAP opens a TLS connection to the IMAP server and logs in.
// Network failures wrap ErrConnection, rejected credentials wrap
// ErrAuthentication.
func DialIMAP(ctx context.Context, srv config.ServerConfig, creds types.Credentials, logger *logrus.Logger) (*IMAPClient, error) {
	addr := srv.Addr()

	// Connect to server
	dialer := &net.Dialer{Timeout: srv.Timeout}
	cl, err := client.DialWithDialerTLS(dialer, addr, &tls.Config{
		ServerName: srv.Host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return nil, connectionError("connecting to IMAP "+addr, err)
	}
	cl.Timeout = srv.Timeout

	c := &IMAPClient{client: cl, addr: addr, logger: logger}
	stop := context.AfterFunc(ctx, c.terminate)
	defer stop()

	// Login
	if err := cl.Login(creds.Address, creds.Secret); err != nil {
		dead := !c.Alive() || ctx.Err() != nil
		c.terminate()
		if dead || isNetworkError(err) {
			return nil, connectionError("logging in to IMAP "+addr, err)
		}
		logger.WithField("address", creds.Address).WithError(err).Warn("IMAP login rejected")
		return nil, authError("logging in to IMAP "+addr, err)
	}

	logger.WithFields(logrus.Fields{
		"server":  addr,
		"address": creds.Address,
	}).Info("Connected to IMAP server")
	return c, nil
}

func dialMailbox(ctx context.Context, srv config.ServerConfig, creds types.Credentials, logger *logrus.Logger) (mailbox, error) {
	return DialIMAP(ctx, srv, creds, logger)
}

// SelectInbox opens INBOX read-only and returns its message count
func (c *IMAPClient) SelectInbox(ctx context.Context) (uint32, error) {
	stop := context.AfterFunc(ctx, c.terminate)
	defer stop()

	mbox, err := c.client.Select(inboxName, true)
	if err != nil {
		return 0, fmt.Errorf("failed to select %s: %w", inboxName, err)
	}
	return mbox.Messages, nil
}

// SearchAll returns every sequence number in the selected mailbox, in
// the order the server lists them
func (c *IMAPClient) SearchAll(ctx context.Context) ([]uint32, error) {
	stop := context.AfterFunc(ctx, c.terminate)
	defer stop()

	seqSet, err := imap.ParseSeqSet("1:*")
	if err != nil {
		return nil, err
	}
	criteria := imap.NewSearchCriteria()
	criteria.SeqNum = seqSet

	ids, err := c.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", inboxName, err)
	}
	return ids, nil
}

// FetchRaw fetches the full RFC 822 content of one message without
// setting the \Seen flag
func (c *IMAPClient) FetchRaw(ctx context.Context, seqNum uint32) ([]byte, error) {
	stop := context.AfterFunc(ctx, c.terminate)
	defer stop()

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.client.Fetch(seqSet, items, messages)
	}()

	var raw []byte
	for msg := range messages {
		if raw == nil {
			raw = c.readBody(msg, section)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", seqNum, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("message %d has no body", seqNum)
	}
	return raw, nil
}

// readBody returns the first readable body section of msg
func (c *IMAPClient) readBody(msg *imap.Message, section *imap.BodySectionName) []byte {
	if literal := msg.GetBody(section); literal != nil {
		if body, err := io.ReadAll(literal); err == nil {
			return body
		}
	}

	// Servers echo BODY[] for BODY.PEEK[]; take any section returned
	for name, literal := range msg.Body {
		if literal == nil {
			continue
		}
		body, err := io.ReadAll(literal)
		if err != nil {
			c.logger.WithError(err).WithField("section", fmt.Sprintf("%v", name)).Debug("Error reading literal")
			continue
		}
		return body
	}
	return nil
}

// Alive reports whether the connection is still usable
func (c *IMAPClient) Alive() bool {
	select {
	case <-c.client.LoggedOut():
		return false
	default:
		return true
	}
}

// Logout closes the IMAP connection
func (c *IMAPClient) Logout() error {
	if !c.Alive() {
		return nil
	}
	if err := c.client.Logout(); err != nil {
		c.terminate()
		return fmt.Errorf("failed to log out of IMAP %s: %w", c.addr, err)
	}
	return nil
}

func (c *IMAPClient) terminate() {
	_ = c.client.Terminate()
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return strings.Contains(err.Error(), "connection closed")
}
