package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/config"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

func testConfig(endpoint string) config.ClassifierConfig {
	return config.ClassifierConfig{
		Endpoint:          endpoint,
		Timeout:           2 * time.Second,
		PhishingKeywords:  config.DefaultPhishingKeywords,
		SpamKeywords:      config.DefaultSpamKeywords,
		SuspiciousDomains: config.DefaultSuspiciousDomains,
	}
}

func newTestClassifier(endpoint string) (*Classifier, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return New(testConfig(endpoint), logger), hook
}

// unreachableEndpoint returns the URL of a server that has already been shut down
func unreachableEndpoint(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/predict"
	srv.Close()
	return url
}

func predictServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL + "/predict"
}

func TestClassifyFallbackScenario(t *testing.T) {
	c, _ := newTestClassifier(unreachableEndpoint(t))

	raw := []byte("Subject: Urgent: verify your account\r\nFrom: noreply@free-mail.com\r\n\r\nclick here\r\n")
	result, email := c.ClassifyFile(context.Background(), "scenario.eml", raw)

	assert.Equal(t, types.ClassificationResult{Label: types.LabelPhishing, Source: types.SourceLocalHeuristic}, result)
	assert.Equal(t, "Urgent: verify your account", email.Subject)

	result = c.Classify(context.Background(), email)
	assert.Equal(t, types.ClassificationResult{Label: types.LabelPhishing, Source: types.SourceLocalHeuristic}, result)
}

func TestClassifyVerifyYourAccountOffline(t *testing.T) {
	c, _ := newTestClassifier(unreachableEndpoint(t))

	result := c.Classify(context.Background(), &types.Email{Subject: "Please Verify Your Account today"})
	assert.Equal(t, types.LabelPhishing, result.Label)
	assert.Equal(t, types.SourceLocalHeuristic, result.Source)
}

func TestClassifyRemoteWins(t *testing.T) {
	var got predictRequest
	endpoint := predictServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(predictResponse{
			Subject:    got.Subject,
			Body:       got.Body,
			Prediction: "normal",
		})
	})
	c, _ := newTestClassifier(endpoint)

	email := &types.Email{
		Subject: "Urgent: verify your account",
		From:    "noreply@free-mail.com",
		Body:    "click here",
	}
	result := c.Classify(context.Background(), email)

	assert.Equal(t, types.ClassificationResult{Label: types.LabelNormal, Source: types.SourceRemote}, result)
	assert.Equal(t, predictRequest{Subject: email.Subject, Body: email.Body, From: email.From}, got)
}

func TestClassifyRemoteLabels(t *testing.T) {
	tests := []struct {
		prediction string
		want       types.Label
	}{
		{"phishing", types.LabelPhishing},
		{"spam", types.LabelSpam},
		{"normal", types.LabelNormal},
		{"normal_emails", types.LabelNormal},
		{"PHISHING", types.LabelPhishing},
		{"something else", types.LabelNormal},
	}

	for _, tt := range tests {
		t.Run(tt.prediction, func(t *testing.T) {
			endpoint := predictServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"subject":"s","body":"b","prediction":"`+tt.prediction+`"}`)
			})
			c, _ := newTestClassifier(endpoint)

			result := c.Classify(context.Background(), &types.Email{Subject: "hello"})
			assert.Equal(t, tt.want, result.Label)
			assert.Equal(t, types.SourceRemote, result.Source)
		})
	}
}

func TestClassifyRemoteFailuresFallBack(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":"No file part"}`)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `<html>oops</html>`)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "missing prediction",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"subject":"s"}`)
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, hook := newTestClassifier(predictServer(t, tt.handler))

			result := c.Classify(context.Background(), &types.Email{Subject: "You are a winner"})
			assert.Equal(t, types.ClassificationResult{Label: types.LabelSpam, Source: types.SourceLocalHeuristic}, result)

			var found bool
			for _, entry := range hook.AllEntries() {
				if entry.Message == "Remote classifier unavailable, using heuristics" {
					found = true
					assert.Equal(t, tt.wantStatus, entry.Data["status"])
				}
			}
			assert.True(t, found, "expected a diagnostic log entry")
		})
	}
}

func TestClassifyTimeoutFallsBack(t *testing.T) {
	release := make(chan struct{})
	endpoint := predictServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	cfg := testConfig(endpoint)
	cfg.Timeout = 50 * time.Millisecond
	logger, _ := test.NewNullLogger()
	c := New(cfg, logger)

	start := time.Now()
	result := c.Classify(context.Background(), &types.Email{Subject: "hello"})
	assert.Equal(t, types.SourceLocalHeuristic, result.Source)
	assert.Equal(t, types.LabelNormal, result.Label)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClassifyFileUploadsMultipart(t *testing.T) {
	raw := []byte("Subject: Meeting\r\nFrom: bob@example.org\r\n\r\nSee you at 10\r\n")
	endpoint := predictServer(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "meeting.eml", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, raw, data)

		_, _ = io.WriteString(w, `{"subject":"Meeting","body":"See you at 10","prediction":"phishing","saved_path":"phishing_emails/meeting.eml"}`)
	})
	c, _ := newTestClassifier(endpoint)

	result, email := c.ClassifyFile(context.Background(), "/tmp/inbox/meeting.eml", raw)
	assert.Equal(t, types.ClassificationResult{Label: types.LabelPhishing, Source: types.SourceRemote}, result)
	require.NotNil(t, email)
	assert.Equal(t, "Meeting", email.Subject)
}

func TestClassifyWithoutEndpoint(t *testing.T) {
	c, _ := newTestClassifier("")

	result := c.Classify(context.Background(), nil)
	assert.Equal(t, types.ClassificationResult{Label: types.LabelNormal, Source: types.SourceLocalHeuristic}, result)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a.eml", fileName("/x/y/a.eml"))
	assert.Equal(t, "a.EML", fileName("a.EML"))
	assert.Equal(t, "a.txt.eml", fileName("a.txt"))
	assert.Equal(t, "message.eml", fileName(""))
}

func TestExcerptTruncates(t *testing.T) {
	long := strings.Repeat("x", excerptSize*2)
	assert.Len(t, excerpt([]byte(long)), excerptSize+3)
	assert.Equal(t, "short", excerpt([]byte("short")))
}
