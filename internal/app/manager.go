// Package app wires the task runner to the mail session, the classifier
// and the verdict history. Presentation code talks only to Manager.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/archive"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/cache"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/classifier"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/config"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/email"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/task"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

var (
	// ErrNotSignedIn is returned by inbox and send operations before SignIn
	ErrNotSignedIn = errors.New("not signed in")

	// ErrInvalidInput is returned when a required field is missing or malformed
	ErrInvalidInput = errors.New("invalid input")
)

// Session is the part of a mail session the manager uses
type Session interface {
	Address() string
	FetchRecent(ctx context.Context, limit int, report func(string)) (*email.FetchResult, error)
	SendMessage(ctx context.Context, msg *email.OutgoingMessage) error
	Close() error
}

// ConnectFunc opens a session
type ConnectFunc func(ctx context.Context, cfg *config.Config, creds types.Credentials, logger *logrus.Logger) (Session, error)

// Callbacks are the sinks for one operation. Any of them may be nil.
type Callbacks[T any] struct {
	OnProgress func(string)
	OnResult   func(T)
	OnError    func(error)
}

// LabeledEmail pairs a message with its classification
type LabeledEmail struct {
	Email  *types.Email
	Result types.ClassificationResult
}

// Manager manages mail operations for one signed-in account
type Manager struct {
	config     *config.Config
	runner     *task.Runner
	classifier *classifier.Classifier
	history    *cache.Store
	connect    ConnectFunc
	logger     *logrus.Logger

	mu      sync.Mutex
	session Session
}

// Option customises a Manager
type Option func(*Manager)

// WithConnector replaces how sessions are opened
func WithConnector(fn ConnectFunc) Option {
	return func(m *Manager) { m.connect = fn }
}

// WithHistory records fetch runs and verdicts in store
func WithHistory(store *cache.Store) Option {
	return func(m *Manager) { m.history = store }
}

// NewManager creates a new manager
func NewManager(cfg *config.Config, runner *task.Runner, cls *classifier.Classifier, logger *logrus.Logger, opts ...Option) *Manager {
	m := &Manager{
		config:     cfg,
		runner:     runner,
		classifier: cls,
		connect:    connectSession,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func connectSession(ctx context.Context, cfg *config.Config, creds types.Credentials, logger *logrus.Logger) (Session, error) {
	session, err := email.Connect(ctx, cfg, creds, logger)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func unit[T any](op task.Operation, cb Callbacks[T], do func(ctx context.Context, progress func(string)) (T, error)) task.WorkUnit[T] {
	return task.WorkUnit[T]{
		Operation:  op,
		Do:         do,
		OnProgress: cb.OnProgress,
		OnResult:   cb.OnResult,
		OnError:    cb.OnError,
	}
}

// SignIn connects with creds and replaces the current session. The
// result is the signed-in address.
func (m *Manager) SignIn(creds types.Credentials, cb Callbacks[string]) *task.Handle {
	return task.Submit(m.runner, unit(task.OpConnect, cb, func(ctx context.Context, progress func(string)) (string, error) {
		if creds.Empty() {
			return "", fmt.Errorf("%w: address and password are required", ErrInvalidInput)
		}

		progress("Connecting to " + m.config.IMAP.Addr() + "...")
		session, err := m.connect(ctx, m.config, creds, m.logger)
		if err != nil {
			return "", err
		}

		m.mu.Lock()
		old := m.session
		m.session = session
		m.mu.Unlock()

		if old != nil {
			if err := old.Close(); err != nil {
				m.logger.WithError(err).Debug("Closing previous session")
			}
		}

		progress("Signed in as " + session.Address())
		return session.Address(), nil
	}))
}

// SignOut closes the current session, if any
func (m *Manager) SignOut() error {
	m.mu.Lock()
	session := m.session
	m.session = nil
	m.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.Close()
}

// SignedIn reports whether a session is open
func (m *Manager) SignedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

func (m *Manager) currentSession() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNotSignedIn
	}
	return m.session, nil
}

// RefreshInbox fetches the configured number of recent messages
func (m *Manager) RefreshInbox(cb Callbacks[*email.FetchResult]) *task.Handle {
	return task.Submit(m.runner, unit(task.OpFetch, cb, func(ctx context.Context, progress func(string)) (*email.FetchResult, error) {
		session, err := m.currentSession()
		if err != nil {
			return nil, err
		}

		start := time.Now()
		result, err := session.FetchRecent(ctx, m.config.Fetch.Limit, progress)
		if err != nil {
			return nil, err
		}

		if m.history != nil {
			_, err := m.history.RecordFetch(&cache.FetchRun{
				Account:   session.Address(),
				Fetched:   len(result.Emails),
				Skipped:   len(result.Skipped),
				Duration:  time.Since(start),
				StartedAt: start,
			})
			if err != nil {
				m.logger.WithError(err).Warn("Failed to record fetch run")
			}
		}
		return result, nil
	}))
}

// Classify labels one message
func (m *Manager) Classify(e *types.Email, cb Callbacks[types.ClassificationResult]) *task.Handle {
	return task.Submit(m.runner, unit(task.OpClassify, cb, func(ctx context.Context, progress func(string)) (types.ClassificationResult, error) {
		result := m.classifier.Classify(ctx, e)
		m.record(e, cache.OriginInbox, result)
		return result, nil
	}))
}

// ClassifyAll labels messages one after another, reporting progress per
// message. The result keeps the input order.
func (m *Manager) ClassifyAll(emails []*types.Email, cb Callbacks[[]LabeledEmail]) *task.Handle {
	return task.Submit(m.runner, unit(task.OpClassify, cb, func(ctx context.Context, progress func(string)) ([]LabeledEmail, error) {
		out := make([]LabeledEmail, 0, len(emails))
		for i, e := range emails {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			progress(fmt.Sprintf("Classifying message %d/%d...", i+1, len(emails)))
			result := m.classifier.Classify(ctx, e)
			m.record(e, cache.OriginInbox, result)
			out = append(out, LabeledEmail{Email: e, Result: result})
		}
		return out, nil
	}))
}

// ClassifyFile reads a .eml file and labels it
func (m *Manager) ClassifyFile(path string, cb Callbacks[LabeledEmail]) *task.Handle {
	return task.Submit(m.runner, unit(task.OpClassify, cb, func(ctx context.Context, progress func(string)) (LabeledEmail, error) {
		if !strings.EqualFold(filepath.Ext(path), ".eml") {
			return LabeledEmail{}, fmt.Errorf("%w: %s is not a .eml file", ErrInvalidInput, path)
		}

		progress("Reading " + filepath.Base(path) + "...")
		raw, err := os.ReadFile(path)
		if err != nil {
			return LabeledEmail{}, fmt.Errorf("failed to read message: %w", err)
		}

		progress("Classifying...")
		result, e := m.classifier.ClassifyFile(ctx, path, raw)
		m.record(e, cache.OriginFile, result)
		return LabeledEmail{Email: e, Result: result}, nil
	}))
}

// ClassifyMbox labels every message in an mbox file, in file order
func (m *Manager) ClassifyMbox(path string, cb Callbacks[[]LabeledEmail]) *task.Handle {
	return task.Submit(m.runner, unit(task.OpClassify, cb, func(ctx context.Context, progress func(string)) ([]LabeledEmail, error) {
		var out []LabeledEmail
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		err := archive.ReadFile(ctx, path, func(msg archive.Message) error {
			progress(fmt.Sprintf("Classifying message %d...", msg.Index+1))
			result, e := m.classifier.ClassifyFile(ctx, fmt.Sprintf("%s-%d.eml", name, msg.Index+1), msg.Raw)
			m.record(e, cache.OriginMbox, result)
			out = append(out, LabeledEmail{Email: e, Result: result})
			return nil
		})
		if err != nil {
			return nil, err
		}

		progress(fmt.Sprintf("Classified %d messages", len(out)))
		return out, nil
	}))
}

func (m *Manager) record(e *types.Email, origin cache.Origin, result types.ClassificationResult) {
	if m.history == nil {
		return
	}
	if _, err := m.history.RecordVerdict(e, origin, result); err != nil {
		m.logger.WithError(err).Warn("Failed to record verdict")
	}
}

// composeError reports a message that was rejected before reaching the server
func composeError(err error) error {
	return &email.SendError{Op: "compose", Err: err}
}

// Send submits a new message. to, subject and body are all required.
func (m *Manager) Send(to, subject, body string, cb Callbacks[struct{}]) *task.Handle {
	return task.Submit(m.runner, unit(task.OpSend, cb, func(ctx context.Context, progress func(string)) (struct{}, error) {
		if strings.TrimSpace(to) == "" || strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
			return struct{}{}, composeError(fmt.Errorf("%w: recipient, subject and body are required", ErrInvalidInput))
		}
		recipients, err := email.ParseRecipients(to)
		if err != nil {
			return struct{}{}, composeError(fmt.Errorf("%w: %w", ErrInvalidInput, err))
		}
		return struct{}{}, m.send(ctx, progress, &email.OutgoingMessage{
			To:      recipients,
			Subject: subject,
			Body:    body,
		})
	}))
}

// Reply answers original, addressed to its sender
func (m *Manager) Reply(original *types.Email, body string, cb Callbacks[struct{}]) *task.Handle {
	return task.Submit(m.runner, unit(task.OpSend, cb, func(ctx context.Context, progress func(string)) (struct{}, error) {
		if original == nil || original.SenderAddress() == "" {
			return struct{}{}, composeError(fmt.Errorf("%w: original message has no sender", ErrInvalidInput))
		}
		if strings.TrimSpace(body) == "" {
			return struct{}{}, composeError(fmt.Errorf("%w: body is required", ErrInvalidInput))
		}
		return struct{}{}, m.send(ctx, progress, &email.OutgoingMessage{
			To:        []string{original.SenderAddress()},
			Subject:   email.ReplySubject(original.Subject),
			Body:      body,
			InReplyTo: original.MessageID,
		})
	}))
}

func (m *Manager) send(ctx context.Context, progress func(string), msg *email.OutgoingMessage) error {
	session, err := m.currentSession()
	if err != nil {
		return err
	}

	progress("Sending to " + strings.Join(msg.To, ", ") + "...")
	if err := session.SendMessage(ctx, msg); err != nil {
		return err
	}
	progress("Message sent")
	return nil
}

// Close signs out and waits for outstanding work
func (m *Manager) Close() error {
	err := m.SignOut()
	m.runner.Wait()
	return err
}
