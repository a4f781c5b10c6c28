package email

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/config"
)

// withRetry runs fn until it succeeds, fails with anything other than a
// connection error, or the policy runs out of attempts.
func withRetry(ctx context.Context, policy config.RetryConfig, logger *logrus.Logger, op string, fn func() error) error {
	if policy.MaxAttempts <= 1 {
		return fn()
	}

	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1)), ctx)

	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !IsConnectionError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo, func(err error, wait time.Duration) {
		logger.WithError(err).WithFields(logrus.Fields{
			"op":   op,
			"wait": wait.String(),
		}).Warn("Connection failed, retrying")
	})
}
