package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

const (
	maxResponseSize = 1 << 20
	excerptSize     = 200
)

type predictRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from"`
}

type predictResponse struct {
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Prediction string `json:"prediction"`
	SavedPath  string `json:"saved_path,omitempty"`
}

// unavailableError describes why the remote classifier could not be used.
// It never leaves this package.
type unavailableError struct {
	Status int
	Body   string
	Err    error
}

func (e *unavailableError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("classification unavailable (status %d): %v", e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("classification unavailable: %v", e.Err)
	default:
		return fmt.Sprintf("classification unavailable: status %d", e.Status)
	}
}

func (e *unavailableError) Unwrap() error {
	return e.Err
}

// mapPrediction converts the service's label. Anything that is not
// phishing or spam is treated as normal.
func mapPrediction(prediction string) types.Label {
	switch strings.ToLower(strings.TrimSpace(prediction)) {
	case "phishing":
		return types.LabelPhishing
	case "spam":
		return types.LabelSpam
	default:
		return types.LabelNormal
	}
}

func (c *Classifier) predictJSON(ctx context.Context, email *types.Email) (*predictResponse, error) {
	payload, err := json.Marshal(predictRequest{
		Subject: email.Subject,
		Body:    email.Body,
		From:    email.From,
	})
	if err != nil {
		return nil, &unavailableError{Err: fmt.Errorf("failed to encode request: %w", err)}
	}
	return c.post(ctx, "application/json", bytes.NewReader(payload))
}

func (c *Classifier) predictFile(ctx context.Context, name string, raw []byte) (*predictResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", fileName(name))
	if err != nil {
		return nil, &unavailableError{Err: fmt.Errorf("failed to create form file: %w", err)}
	}
	if _, err := part.Write(raw); err != nil {
		return nil, &unavailableError{Err: fmt.Errorf("failed to write form file: %w", err)}
	}
	if err := w.Close(); err != nil {
		return nil, &unavailableError{Err: fmt.Errorf("failed to finish form: %w", err)}
	}

	return c.post(ctx, w.FormDataContentType(), &buf)
}

// fileName returns a base name ending in .eml, which the service requires
func fileName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "message"
	}
	if !strings.EqualFold(filepath.Ext(base), ".eml") {
		base += ".eml"
	}
	return base
}

func (c *Classifier) post(ctx context.Context, contentType string, body io.Reader) (*predictResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, &unavailableError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &unavailableError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &unavailableError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &unavailableError{Status: resp.StatusCode, Body: excerpt(data)}
	}

	var result predictResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &unavailableError{Status: resp.StatusCode, Body: excerpt(data), Err: fmt.Errorf("malformed response: %w", err)}
	}
	if strings.TrimSpace(result.Prediction) == "" {
		return nil, &unavailableError{Status: resp.StatusCode, Body: excerpt(data), Err: fmt.Errorf("response has no prediction")}
	}
	return &result, nil
}

func excerpt(data []byte) string {
	s := strings.ToValidUTF8(string(data), "�")
	if len(s) > excerptSize {
		s = strings.ToValidUTF8(s[:excerptSize], "") + "..."
	}
	return s
}
