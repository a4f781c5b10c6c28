package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/cache"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/classifier"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/config"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/email"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/task"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

type fakeSession struct {
	mu       sync.Mutex
	address  string
	result   *email.FetchResult
	fetchErr error
	sendErr  error
	sent     []*email.OutgoingMessage
	closed   int
}

func (f *fakeSession) Address() string { return f.address }

func (f *fakeSession) FetchRecent(_ context.Context, limit int, report func(string)) (*email.FetchResult, error) {
	report("fetching")
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.result, nil
}

func (f *fakeSession) SendMessage(_ context.Context, msg *email.OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type outcome[T any] struct {
	progress []string
	result   T
	err      error
	calls    int
}

func (o *outcome[T]) callbacks() Callbacks[T] {
	return Callbacks[T]{
		OnProgress: func(s string) { o.progress = append(o.progress, s) },
		OnResult: func(v T) {
			o.calls++
			o.result = v
		},
		OnError: func(err error) {
			o.calls++
			o.err = err
		},
	}
}

type fixture struct {
	manager *Manager
	session *fakeSession
	history *cache.Store
	loop    *task.Loop
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	cfg := &config.Config{
		IMAP:  config.ServerConfig{Host: "imap.example.org", Port: 993},
		Fetch: config.FetchConfig{Limit: 50},
		Classifier: config.ClassifierConfig{
			PhishingKeywords:  config.DefaultPhishingKeywords,
			SpamKeywords:      config.DefaultSpamKeywords,
			SuspiciousDomains: config.DefaultSuspiciousDomains,
		},
	}

	db, err := cache.NewCache(cache.MemoryPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	history := cache.NewStore(db, logger)

	loop := task.NewLoop()
	runner := task.NewRunner(context.Background(), loop, logger)
	session := &fakeSession{address: "alice@example.org"}

	m := NewManager(cfg, runner, classifier.New(cfg.Classifier, logger), logger,
		WithHistory(history),
		WithConnector(func(ctx context.Context, cfg *config.Config, creds types.Credentials, logger *logrus.Logger) (Session, error) {
			if creds.Secret != "app-password" {
				return nil, email.ErrAuthentication
			}
			return session, nil
		}),
	)
	return &fixture{manager: m, session: session, history: history, loop: loop}
}

func (f *fixture) await(t *testing.T, h *task.Handle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.loop.RunUntil(ctx, h.Done()))
}

func (f *fixture) signIn(t *testing.T) {
	t.Helper()
	var o outcome[string]
	f.await(t, f.manager.SignIn(types.Credentials{Address: "alice@example.org", Secret: "app-password"}, o.callbacks()))
	require.NoError(t, o.err)
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)

	var o outcome[string]
	f.await(t, f.manager.SignIn(types.Credentials{Address: "alice@example.org", Secret: "app-password"}, o.callbacks()))
	assert.NoError(t, o.err)
	assert.Equal(t, "alice@example.org", o.result)
	assert.Equal(t, 1, o.calls)
	assert.True(t, f.manager.SignedIn())
	assert.NotEmpty(t, o.progress)

	require.NoError(t, f.manager.SignOut())
	assert.False(t, f.manager.SignedIn())
	assert.Equal(t, 1, f.session.closed)
	require.NoError(t, f.manager.SignOut())
}

func TestSignInErrors(t *testing.T) {
	f := newFixture(t)

	var missing outcome[string]
	f.await(t, f.manager.SignIn(types.Credentials{Address: "alice@example.org"}, missing.callbacks()))
	assert.ErrorIs(t, missing.err, ErrInvalidInput)

	var rejected outcome[string]
	f.await(t, f.manager.SignIn(types.Credentials{Address: "alice@example.org", Secret: "wrong"}, rejected.callbacks()))
	assert.True(t, email.IsAuthError(rejected.err))
	assert.NotEmpty(t, Guidance(rejected.err))
	assert.False(t, f.manager.SignedIn())
}

func TestRefreshInbox(t *testing.T) {
	f := newFixture(t)

	var before outcome[*email.FetchResult]
	f.await(t, f.manager.RefreshInbox(before.callbacks()))
	assert.ErrorIs(t, before.err, ErrNotSignedIn)

	f.signIn(t)
	f.session.result = &email.FetchResult{
		Emails:  []*types.Email{{ID: "3"}, {ID: "1"}},
		Skipped: []email.SkippedMessage{{ID: "2", Err: errors.New("bad")}},
	}

	var o outcome[*email.FetchResult]
	f.await(t, f.manager.RefreshInbox(o.callbacks()))
	require.NoError(t, o.err)
	assert.Len(t, o.result.Emails, 2)
	assert.Equal(t, []string{"fetching"}, o.progress)

	runs, err := f.history.RecentFetches(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "alice@example.org", runs[0].Account)
	assert.Equal(t, 2, runs[0].Fetched)
	assert.Equal(t, 1, runs[0].Skipped)
}

func TestRefreshInboxFailure(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.session.fetchErr = &email.FetchError{Op: "select", Err: errors.New("NO")}

	var o outcome[*email.FetchResult]
	f.await(t, f.manager.RefreshInbox(o.callbacks()))

	var fetchErr *email.FetchError
	assert.ErrorAs(t, o.err, &fetchErr)
	assert.Equal(t, 1, o.calls)
}

func TestClassifyRecordsVerdict(t *testing.T) {
	f := newFixture(t)

	var o outcome[types.ClassificationResult]
	f.await(t, f.manager.Classify(&types.Email{Subject: "Urgent: verify your account", From: "noreply@free-mail.com"}, o.callbacks()))
	require.NoError(t, o.err)
	assert.Equal(t, types.ClassificationResult{Label: types.LabelPhishing, Source: types.SourceLocalHeuristic}, o.result)

	counts, err := f.history.LabelCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[types.LabelPhishing])
}

func TestClassifyAllKeepsOrder(t *testing.T) {
	f := newFixture(t)
	emails := []*types.Email{
		{Subject: "You are a winner"},
		{Subject: "Minutes", From: "bob@example.org"},
		{Subject: "Security alert"},
	}

	var o outcome[[]LabeledEmail]
	f.await(t, f.manager.ClassifyAll(emails, o.callbacks()))
	require.NoError(t, o.err)
	require.Len(t, o.result, 3)
	assert.Equal(t, types.LabelSpam, o.result[0].Result.Label)
	assert.Equal(t, types.LabelNormal, o.result[1].Result.Label)
	assert.Equal(t, types.LabelPhishing, o.result[2].Result.Label)
	assert.Same(t, emails[1], o.result[1].Email)
	assert.Len(t, o.progress, 3)
}

func TestClassifyFile(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "scenario.eml")
	raw := "Subject: Urgent: verify your account\r\nFrom: noreply@free-mail.com\r\n\r\nclick here\r\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	var o outcome[LabeledEmail]
	f.await(t, f.manager.ClassifyFile(path, o.callbacks()))
	require.NoError(t, o.err)
	assert.Equal(t, types.LabelPhishing, o.result.Result.Label)
	assert.Equal(t, "Urgent: verify your account", o.result.Email.Subject)

	verdicts, err := f.history.Search(cache.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Equal(t, cache.OriginFile, verdicts[0].Origin)
}

func TestClassifyFileRejectsOtherExtensions(t *testing.T) {
	f := newFixture(t)

	var o outcome[LabeledEmail]
	f.await(t, f.manager.ClassifyFile(filepath.Join(t.TempDir(), "notes.txt"), o.callbacks()))
	assert.ErrorIs(t, o.err, ErrInvalidInput)

	var missing outcome[LabeledEmail]
	f.await(t, f.manager.ClassifyFile(filepath.Join(t.TempDir(), "missing.eml"), missing.callbacks()))
	assert.Error(t, missing.err)
	assert.NotErrorIs(t, missing.err, ErrInvalidInput)
}

func TestClassifyMbox(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	w := mbox.NewWriter(&buf)
	for _, m := range []string{
		"Subject: Lottery results\r\nFrom: a@example.org\r\n\r\nyou won\r\n",
		"Subject: Lunch\r\nFrom: b@example.org\r\n\r\nnoon?\r\n",
	} {
		mw, err := w.CreateMessage("a@example.org", time.Now())
		require.NoError(t, err)
		_, err = mw.Write([]byte(m))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "export.mbox")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	var o outcome[[]LabeledEmail]
	f.await(t, f.manager.ClassifyMbox(path, o.callbacks()))
	require.NoError(t, o.err)
	require.Len(t, o.result, 2)
	assert.Equal(t, types.LabelSpam, o.result[0].Result.Label)
	assert.Equal(t, types.LabelNormal, o.result[1].Result.Label)

	origin := cache.OriginMbox
	verdicts, err := f.history.Search(cache.SearchOptions{Origin: &origin})
	require.NoError(t, err)
	assert.Len(t, verdicts, 2)
}

func TestSend(t *testing.T) {
	f := newFixture(t)

	var before outcome[struct{}]
	f.await(t, f.manager.Send("bob@example.org", "Hi", "Hello", before.callbacks()))
	assert.ErrorIs(t, before.err, ErrNotSignedIn)

	f.signIn(t)

	tests := []struct {
		name          string
		to, sub, body string
		wantErr       error
	}{
		{"ok", "bob@example.org", "Hi", "Hello", nil},
		{"missing recipient", "", "Hi", "Hello", ErrInvalidInput},
		{"missing subject", "bob@example.org", " ", "Hello", ErrInvalidInput},
		{"missing body", "bob@example.org", "Hi", "", ErrInvalidInput},
		{"bad recipient", "not an address", "Hi", "Hello", ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o outcome[struct{}]
			f.await(t, f.manager.Send(tt.to, tt.sub, tt.body, o.callbacks()))
			assert.Equal(t, 1, o.calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, o.err, tt.wantErr)
				var sendErr *email.SendError
				require.ErrorAs(t, o.err, &sendErr)
				assert.Equal(t, "compose", sendErr.Op)
			} else {
				assert.NoError(t, o.err)
			}
		})
	}

	require.Len(t, f.session.sent, 1)
	assert.Equal(t, []string{"bob@example.org"}, f.session.sent[0].To)
}

func TestSendFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.session.sendErr = &email.SendError{Op: "connect", Err: email.ErrAuthentication}

	var o outcome[struct{}]
	f.await(t, f.manager.Send("bob@example.org", "Hi", "Hello", o.callbacks()))

	var sendErr *email.SendError
	require.ErrorAs(t, o.err, &sendErr)
	assert.True(t, email.IsAuthError(o.err))
	assert.NotContains(t, o.progress, "Message sent")
}

func TestReply(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	original := &types.Email{
		MessageID: "orig@example.org",
		Subject:   "Quarterly report",
		From:      "Bob <Bob@Example.org>",
	}

	var o outcome[struct{}]
	f.await(t, f.manager.Reply(original, "Thanks!", o.callbacks()))
	require.NoError(t, o.err)

	require.Len(t, f.session.sent, 1)
	msg := f.session.sent[0]
	assert.Equal(t, []string{"bob@example.org"}, msg.To)
	assert.Equal(t, "Re: Quarterly report", msg.Subject)
	assert.Equal(t, "orig@example.org", msg.InReplyTo)

	var bad outcome[struct{}]
	f.await(t, f.manager.Reply(&types.Email{}, "x", bad.callbacks()))
	assert.ErrorIs(t, bad.err, ErrInvalidInput)
}

func TestFilter(t *testing.T) {
	emails := []*types.Email{
		{Subject: "Invoice", From: "billing@example.org", Body: "attached"},
		{Subject: "Lunch", From: "bob@example.org", Body: "noon at the INVOICE cafe"},
		{Subject: "Hello", From: "carol@example.org", Body: "hi"},
	}

	assert.Len(t, Filter(emails, "invoice"), 2)
	assert.Len(t, Filter(emails, "CAROL"), 1)
	assert.Len(t, Filter(emails, "  "), 3)
	assert.Empty(t, Filter(emails, "nothing"))
}

func TestGuidance(t *testing.T) {
	assert.NotEmpty(t, Guidance(&email.SendError{Op: "connect", Err: email.ErrConnection}))
	assert.Nil(t, Guidance(errors.New("other")))
}
