// Package classifier labels messages as phishing, spam or normal.
//
// The remote prediction service is asked first. When it cannot be used
// for any reason the message is labelled by an ordered keyword table
// instead, so classification itself never fails.
package classifier

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/codec"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/config"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

const defaultTimeout = 10 * time.Second

// Classifier holds no mutable state and is safe for concurrent use
type Classifier struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	rules      RuleSet
	logger     *logrus.Logger
}

// New creates a classifier. An empty endpoint disables the remote step.
func New(cfg config.ClassifierConfig, logger *logrus.Logger) *Classifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Classifier{
		endpoint:   cfg.Endpoint,
		timeout:    timeout,
		httpClient: &http.Client{},
		rules:      NewRuleSet(cfg),
		logger:     logger,
	}
}

// Rules returns the fallback table
func (c *Classifier) Rules() RuleSet {
	return c.rules
}

// Classify labels email, asking the remote service first
func (c *Classifier) Classify(ctx context.Context, email *types.Email) types.ClassificationResult {
	if email == nil {
		email = &types.Email{}
	}

	if c.endpoint != "" {
		resp, err := c.predictJSON(ctx, email)
		if err == nil {
			return c.remoteResult(resp)
		}
		c.logUnavailable(err)
	}
	return c.Heuristic(email)
}

// ClassifyFile uploads a raw message to the remote service. The message
// is always decoded locally as well and returned alongside the result.
func (c *Classifier) ClassifyFile(ctx context.Context, name string, raw []byte) (types.ClassificationResult, *types.Email) {
	email := codec.Decode(raw)

	if c.endpoint != "" {
		resp, err := c.predictFile(ctx, name, raw)
		if err == nil {
			return c.remoteResult(resp), email
		}
		c.logUnavailable(err)
	}
	return c.Heuristic(email), email
}

// Heuristic labels email with the keyword table only
func (c *Classifier) Heuristic(email *types.Email) types.ClassificationResult {
	m := c.rules.Match(email)
	if m.Rule >= 0 {
		c.logger.WithFields(logrus.Fields{
			"label":   m.Label,
			"rule":    c.rules[m.Rule].Field.String(),
			"keyword": m.Keyword,
		}).Debug("Heuristic match")
	}
	return types.ClassificationResult{Label: m.Label, Source: types.SourceLocalHeuristic}
}

func (c *Classifier) remoteResult(resp *predictResponse) types.ClassificationResult {
	label := mapPrediction(resp.Prediction)
	c.logger.WithFields(logrus.Fields{
		"prediction": resp.Prediction,
		"label":      label,
	}).Debug("Remote classification")
	return types.ClassificationResult{Label: label, Source: types.SourceRemote}
}

func (c *Classifier) logUnavailable(err error) {
	entry := c.logger.WithField("endpoint", c.endpoint)
	var unavailable *unavailableError
	if errors.As(err, &unavailable) {
		if unavailable.Status != 0 {
			entry = entry.WithField("status", unavailable.Status)
		}
		if unavailable.Body != "" {
			entry = entry.WithField("body", unavailable.Body)
		}
	}
	entry.WithError(err).Debug("Remote classifier unavailable, using heuristics")
}
