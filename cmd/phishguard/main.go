package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/app"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/cache"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/classifier"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/config"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/credential"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/task"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

var version = "dev"

// cli holds everything a command needs. Callbacks from background work
// are dispatched onto loop, which only the main goroutine drains.
type cli struct {
	configPath string
	envFile    string
	logLevel   string

	ctx     context.Context
	cfg     *config.Config
	logger  *logrus.Logger
	loop    *task.Loop
	runner  *task.Runner
	manager *app.Manager
	history *cache.Store
	db      *cache.Cache

	out io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{ctx: ctx, out: os.Stdout}
	err := c.rootCommand().ExecuteContext(ctx)
	if tErr := c.teardown(); tErr != nil && c.logger != nil {
		c.logger.WithError(tErr).Warn("Shutdown")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		for _, line := range app.Guidance(err) {
			fmt.Fprintf(os.Stderr, "  %s\n", line)
		}
		stop()
		os.Exit(1)
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "phishguard",
		Short:         "Read a mailbox and flag phishing and spam",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&c.envFile, "env-file", ".env", "environment file to load if present")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (overrides config)")

	root.AddCommand(
		c.inboxCommand(),
		c.classifyCommand(),
		c.classifyMboxCommand(),
		c.sendCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.historyCommand(),
	)
	return root
}

func (c *cli) setup() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("godotenv.Load failed: %w", err)
		}
	}

	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	c.cfg = cfg

	// Set up logging; stdout is reserved for command output
	c.logger = logrus.New()
	c.logger.SetFormatter(&logrus.JSONFormatter{})
	c.logger.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	c.logger.SetLevel(level)

	opts := []app.Option{}
	if cfg.CachePath != "" {
		c.db, err = cache.NewCache(cfg.CachePath, c.logger)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		c.history = cache.NewStore(c.db, c.logger)
		opts = append(opts, app.WithHistory(c.history))
	}

	c.loop = task.NewLoop()
	c.runner = task.NewRunner(c.ctx, c.loop, c.logger)
	c.runner.SetTimeout(task.OpConnect, connectTimeout(cfg))

	c.manager = app.NewManager(cfg, c.runner, classifier.New(cfg.Classifier, c.logger), c.logger, opts...)
	return nil
}

// connectTimeout bounds a sign-in including every retry
func connectTimeout(cfg *config.Config) time.Duration {
	attempts := cfg.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts) * (cfg.IMAP.Timeout + cfg.Retry.InitialInterval*4)
}

func (c *cli) teardown() error {
	var errs []error
	if c.manager != nil {
		errs = append(errs, c.manager.Close())
	}
	if c.loop != nil {
		c.loop.Close()
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}

// wait drains callbacks on the calling goroutine until h completes
func (c *cli) wait(h *task.Handle) error {
	if err := c.loop.RunUntil(c.ctx, h.Done()); err != nil {
		h.Cancel()
		return err
	}
	return nil
}

// progress prints notices to stderr
func (c *cli) progress(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// credentials come from configuration first, then from the keyring
func (c *cli) credentials() (types.Credentials, error) {
	creds := c.cfg.Credentials()
	if !creds.Empty() {
		return creds, nil
	}

	store, err := credential.Open(c.cfg.KeyringPassphrase, c.logger)
	if err != nil {
		return types.Credentials{}, err
	}
	recalled, err := store.Recall(creds.Address)
	if err != nil {
		return types.Credentials{}, fmt.Errorf("no credentials configured; set EMAIL and PASSWORD or run login --remember: %w", err)
	}
	return recalled, nil
}

// signIn opens a session and blocks until it is ready
func (c *cli) signIn() (types.Credentials, error) {
	creds, err := c.credentials()
	if err != nil {
		return types.Credentials{}, err
	}

	var signInErr error
	h := c.manager.SignIn(creds, app.Callbacks[string]{
		OnProgress: c.progress,
		OnError:    func(err error) { signInErr = err },
	})
	if err := c.wait(h); err != nil {
		return types.Credentials{}, err
	}
	return creds, signInErr
}
