package email

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/codec"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/config"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

// Session owns one IMAP read connection and one SMTP send connection for
// a single account.
//
// Each connection is guarded by its own mutex: a second FetchRecent waits
// for the first to finish, a second Send waits for the first, while a
// fetch and a send can run at the same time.
type Session struct {
	cfg    *config.Config
	creds  types.Credentials
	logger *logrus.Logger

	dialMailbox   mailboxDialer
	dialTransport transportDialer
	decode        func([]byte) *types.Email

	readMu  sync.Mutex
	mailbox mailbox

	sendMu    sync.Mutex
	transport transport

	closed atomic.Bool
}

// Option customises a Session
type Option func(*Session)

// SkippedMessage records a message that could not be fetched or decoded
type SkippedMessage struct {
	ID  string
	Err error
}

// FetchResult holds the decoded messages, newest first, and the messages
// that were skipped along the way
type FetchResult struct {
	Emails  []*types.Email
	Skipped []SkippedMessage
}

// Connect opens and authenticates the read connection. The send
// connection is opened by the first Send.
func Connect(ctx context.Context, cfg *config.Config, creds types.Credentials, logger *logrus.Logger, opts ...Option) (*Session, error) {
	if creds.Empty() {
		return nil, fmt.Errorf("%w: address and secret are required", ErrAuthentication)
	}

	s := &Session{
		cfg:           cfg,
		creds:         creds,
		logger:        logger,
		dialMailbox:   dialMailbox,
		dialTransport: dialTransport,
		decode:        codec.Decode,
	}
	for _, opt := range opts {
		opt(s)
	}

	mb, err := s.openMailbox(ctx)
	if err != nil {
		return nil, err
	}
	s.mailbox = mb
	return s, nil
}

// Address returns the account address the session is authenticated as
func (s *Session) Address() string {
	return s.creds.Address
}

func (s *Session) openMailbox(ctx context.Context) (mailbox, error) {
	var mb mailbox
	err := withRetry(ctx, s.cfg.Retry, s.logger, "imap", func() error {
		var err error
		mb, err = s.dialMailbox(ctx, s.cfg.IMAP, s.creds, s.logger)
		return err
	})
	return mb, err
}

func (s *Session) openTransport(ctx context.Context) (transport, error) {
	var tr transport
	err := withRetry(ctx, s.cfg.Retry, s.logger, "smtp", func() error {
		var err error
		tr, err = s.dialTransport(ctx, s.cfg.SMTP, s.creds, s.logger)
		return err
	})
	return tr, err
}

// FetchRecent retrieves at most limit of the most recent inbox messages.
// A limit of zero or less uses the configured fetch limit.
//
// Messages that fail to fetch or decode are listed in Skipped and do not
// fail the call. report, when not nil, receives progress notices.
func (s *Session) FetchRecent(ctx context.Context, limit int, report func(string)) (*FetchResult, error) {
	if report == nil {
		report = func(string) {}
	}
	if limit <= 0 {
		limit = s.cfg.Fetch.Limit
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	if s.closed.Load() {
		return nil, &FetchError{Op: "connect", Err: ErrClosed}
	}

	if s.mailbox == nil || !s.mailbox.Alive() {
		report("Connecting to mail server...")
		mb, err := s.openMailbox(ctx)
		if err != nil {
			return nil, &FetchError{Op: "connect", Err: err}
		}
		s.mailbox = mb
	}

	report("Opening inbox...")
	count, err := s.mailbox.SelectInbox(ctx)
	if err != nil {
		s.dropMailbox()
		return nil, &FetchError{Op: "select", Err: err}
	}

	result := &FetchResult{Emails: []*types.Email{}}
	if count == 0 {
		report("Inbox is empty")
		return result, nil
	}

	report("Loading message list...")
	ids, err := s.mailbox.SearchAll(ctx)
	if err != nil {
		s.dropMailbox()
		return nil, &FetchError{Op: "search", Err: err}
	}
	report(fmt.Sprintf("Found %d messages", len(ids)))

	if len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			s.dropMailbox()
			return nil, &FetchError{Op: "fetch", Err: err}
		}

		report(fmt.Sprintf("Loading message %d/%d...", i+1, len(ids)))
		email, err := s.fetchOne(ctx, id)
		if err == nil {
			result.Emails = append(result.Emails, email)
			continue
		}

		if !s.mailbox.Alive() {
			s.dropMailbox()
			return nil, &FetchError{Op: "fetch", Err: connectionError("reading inbox", err)}
		}

		s.logger.WithError(err).WithField("id", id).Warn("Skipping message")
		report(fmt.Sprintf("Skipped message %d: %v", id, err))
		result.Skipped = append(result.Skipped, SkippedMessage{
			ID:  strconv.FormatUint(uint64(id), 10),
			Err: err,
		})
	}

	codec.SortByDate(result.Emails)

	s.logger.WithFields(logrus.Fields{
		"fetched": len(result.Emails),
		"skipped": len(result.Skipped),
	}).Info("Fetched inbox")
	report(fmt.Sprintf("Loaded %d messages", len(result.Emails)))

	return result, nil
}

// fetchOne fetches and decodes a single message
func (s *Session) fetchOne(ctx context.Context, id uint32) (email *types.Email, err error) {
	defer func() {
		if r := recover(); r != nil {
			email, err = nil, fmt.Errorf("decoding message %d: %v", id, r)
		}
	}()

	raw, err := s.mailbox.FetchRaw(ctx, id)
	if err != nil {
		return nil, err
	}

	email = s.decode(raw)
	if email == nil {
		return nil, fmt.Errorf("decoding message %d: no result", id)
	}
	email.ID = strconv.FormatUint(uint64(id), 10)
	return email, nil
}

func (s *Session) dropMailbox() {
	if s.mailbox == nil {
		return
	}
	if err := s.mailbox.Logout(); err != nil {
		s.logger.WithError(err).Debug("IMAP logout after failure")
	}
	s.mailbox = nil
}

// Send submits a plain-text message to a comma-separated recipient list
func (s *Session) Send(ctx context.Context, to, subject, body string) error {
	recipients, err := ParseRecipients(to)
	if err != nil {
		return &SendError{Op: "compose", Err: err}
	}
	return s.SendMessage(ctx, &OutgoingMessage{
		To:      recipients,
		Subject: subject,
		Body:    body,
	})
}

// SendMessage composes msg and submits it over the send connection,
// opening it (or reopening it when the previous one died) as needed.
// Every failure is returned as a *SendError.
func (s *Session) SendMessage(ctx context.Context, msg *OutgoingMessage) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed.Load() {
		return &SendError{Op: "connect", Err: ErrClosed}
	}

	if msg.From == "" {
		msg.From = s.creds.Address
	}
	raw, err := Compose(msg)
	if err != nil {
		return &SendError{Op: "compose", Err: err}
	}

	if s.transport != nil && !s.transport.Alive() {
		s.dropTransport()
	}
	if s.transport == nil {
		tr, err := s.openTransport(ctx)
		if err != nil {
			return &SendError{Op: "connect", Err: err}
		}
		s.transport = tr
	}

	if err := s.transport.Send(ctx, msg.From, msg.To, raw); err != nil {
		s.dropTransport()
		return &SendError{Op: "submit", Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"recipients": len(msg.To),
		"size":       len(raw),
	}).Info("Message sent")
	return nil
}

func (s *Session) dropTransport() {
	if s.transport == nil {
		return
	}
	if err := s.transport.Close(); err != nil {
		s.logger.WithError(err).Debug("SMTP close after failure")
	}
	s.transport = nil
}

// Close releases both connections. It is idempotent and safe to call on
// a nil Session.
func (s *Session) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error

	s.readMu.Lock()
	if s.mailbox != nil {
		errs = append(errs, s.mailbox.Logout())
		s.mailbox = nil
	}
	s.readMu.Unlock()

	s.sendMu.Lock()
	if s.transport != nil {
		errs = append(errs, s.transport.Close())
		s.transport = nil
	}
	s.sendMu.Unlock()

	return errors.Join(errs...)
}
