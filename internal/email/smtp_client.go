package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sirupsen/logrus"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/config"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

// transport is the send side of a session
type transport interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
	Alive() bool
	Close() error
}

type transportDialer func(ctx context.Context, srv config.SMTPConfig, creds types.Credentials, logger *logrus.Logger) (transport, error)

// SMTPClient wraps an authenticated SMTP submission connection
type SMTPClient struct {
	client  *smtp.Client
	conn    net.Conn
	addr    string
	timeout time.Duration
	logger  *logrus.Logger
}

// DialSMTP connects to the submission server, upgrades the connection
// according to srv.Security and authenticates with AUTH PLAIN.
func DialSMTP(ctx context.Context, srv config.SMTPConfig, creds types.Credentials, logger *logrus.Logger) (*SMTPClient, error) {
	addr := srv.Addr()
	dialer := &net.Dialer{Timeout: srv.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if srv.Security == config.SecurityTLS {
		// TLS connection (port 465)
		conn, err = (&tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: srv.Host, MinVersion: tls.VersionTLS12},
		}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, connectionError("connecting to SMTP "+addr, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	if srv.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(srv.Timeout))
	}

	var client *smtp.Client
	if srv.Security == config.SecurityStartTLS {
		// StartTLS connection (port 587)
		client, err = smtp.NewClientStartTLS(conn, &tls.Config{ServerName: srv.Host, MinVersion: tls.VersionTLS12})
		if err != nil {
			_ = conn.Close()
			return nil, connectionError("starting TLS with "+addr, err)
		}
	} else {
		client = smtp.NewClient(conn)
	}

	c := &SMTPClient{
		client:  client,
		conn:    conn,
		addr:    addr,
		timeout: srv.Timeout,
		logger:  logger,
	}

	// Auth
	if err := c.client.Auth(sasl.NewPlainClient("", creds.Address, creds.Secret)); err != nil {
		_ = c.client.Close()
		if ctx.Err() != nil || isNetworkError(err) {
			return nil, connectionError("authenticating with "+addr, err)
		}
		logger.WithField("address", creds.Address).WithError(err).Warn("SMTP authentication rejected")
		return nil, authError("authenticating with "+addr, err)
	}

	logger.WithFields(logrus.Fields{
		"server":  addr,
		"address": creds.Address,
	}).Info("Connected to SMTP server")
	return c, nil
}

func dialTransport(ctx context.Context, srv config.SMTPConfig, creds types.Credentials, logger *logrus.Logger) (transport, error) {
	return DialSMTP(ctx, srv, creds, logger)
}

// Send submits one message. It returns nil only once the server has
// accepted the DATA payload.
func (c *SMTPClient) Send(ctx context.Context, from string, to []string, msg []byte) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()
	c.extendDeadline()

	if err := c.client.SendMail(from, to, bytes.NewReader(msg)); err != nil {
		var smtpErr *smtp.SMTPError
		if !errors.As(err, &smtpErr) {
			return connectionError("submitting to "+c.addr, err)
		}
		if smtpErr.Code == 530 || smtpErr.Code == 535 {
			return authError("submitting to "+c.addr, err)
		}
		return fmt.Errorf("server rejected message: %w", err)
	}
	return nil
}

// Alive checks the connection with NOOP before it is reused
func (c *SMTPClient) Alive() bool {
	c.extendDeadline()
	return c.client.Noop() == nil
}

// Close sends QUIT and closes the connection
func (c *SMTPClient) Close() error {
	c.extendDeadline()
	if err := c.client.Quit(); err != nil {
		_ = c.client.Close()
		return fmt.Errorf("failed to quit SMTP %s: %w", c.addr, err)
	}
	return nil
}

func (c *SMTPClient) extendDeadline() {
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
}
