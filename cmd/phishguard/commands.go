package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/app"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/cache"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/credential"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/email"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

func (c *cli) inboxCommand() *cobra.Command {
	var (
		classify bool
		query    string
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List the most recent inbox messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.signIn(); err != nil {
				return err
			}

			var (
				result   *email.FetchResult
				fetchErr error
			)
			h := c.manager.RefreshInbox(app.Callbacks[*email.FetchResult]{
				OnProgress: c.progress,
				OnResult:   func(r *email.FetchResult) { result = r },
				OnError:    func(err error) { fetchErr = err },
			})
			if err := c.wait(h); err != nil {
				return err
			}
			if fetchErr != nil {
				return fetchErr
			}

			emails := app.Filter(result.Emails, query)
			for _, skipped := range result.Skipped {
				fmt.Fprintf(os.Stderr, "skipped message %s: %v\n", skipped.ID, skipped.Err)
			}

			if !classify {
				renderInbox(c.out, emails, nil)
				return nil
			}

			var (
				labeled     []app.LabeledEmail
				classifyErr error
			)
			h = c.manager.ClassifyAll(emails, app.Callbacks[[]app.LabeledEmail]{
				OnProgress: c.progress,
				OnResult:   func(l []app.LabeledEmail) { labeled = l },
				OnError:    func(err error) { classifyErr = err },
			})
			if err := c.wait(h); err != nil {
				return err
			}
			if classifyErr != nil {
				return classifyErr
			}
			renderInbox(c.out, emails, labeled)
			return nil
		},
	}

	cmd.Flags().BoolVar(&classify, "classify", false, "classify every listed message")
	cmd.Flags().StringVar(&query, "filter", "", "only show messages whose subject, sender or body contains this text")
	return cmd
}

func (c *cli) classifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify FILE.eml",
		Short: "Classify a saved message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				labeled app.LabeledEmail
				err     error
			)
			h := c.manager.ClassifyFile(args[0], app.Callbacks[app.LabeledEmail]{
				OnProgress: c.progress,
				OnResult:   func(l app.LabeledEmail) { labeled = l },
				OnError:    func(e error) { err = e },
			})
			if waitErr := c.wait(h); waitErr != nil {
				return waitErr
			}
			if err != nil {
				return err
			}
			renderMessage(c.out, labeled)
			return nil
		},
	}
}

func (c *cli) classifyMboxCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify-mbox FILE",
		Short: "Classify every message in an mbox export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				labeled []app.LabeledEmail
				err     error
			)
			h := c.manager.ClassifyMbox(args[0], app.Callbacks[[]app.LabeledEmail]{
				OnProgress: c.progress,
				OnResult:   func(l []app.LabeledEmail) { labeled = l },
				OnError:    func(e error) { err = e },
			})
			if waitErr := c.wait(h); waitErr != nil {
				return waitErr
			}
			if err != nil {
				return err
			}

			emails := make([]*types.Email, 0, len(labeled))
			for _, l := range labeled {
				emails = append(emails, l.Email)
			}
			renderInbox(c.out, emails, labeled)
			return nil
		},
	}
}

func (c *cli) sendCommand() *cobra.Command {
	var to, subject, body string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a plain-text message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.signIn(); err != nil {
				return err
			}

			var sendErr error
			h := c.manager.Send(to, subject, body, app.Callbacks[struct{}]{
				OnProgress: c.progress,
				OnError:    func(err error) { sendErr = err },
			})
			if err := c.wait(h); err != nil {
				return err
			}
			if sendErr != nil {
				return sendErr
			}
			fmt.Fprintln(c.out, "Message sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "comma-separated recipients")
	cmd.Flags().StringVar(&subject, "subject", "", "subject line")
	cmd.Flags().StringVar(&body, "body", "", "message text")
	return cmd
}

func (c *cli) loginCommand() *cobra.Command {
	var remember bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check that the configured account can sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := c.signIn()
			if err != nil {
				return err
			}

			if remember {
				store, err := credential.Open(c.cfg.KeyringPassphrase, c.logger)
				if err != nil {
					return err
				}
				if err := store.Remember(creds); err != nil {
					return err
				}
			}

			fmt.Fprintf(c.out, "Signed in as %s\n", creds.Address)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remember, "remember", false, "store the password in the system keyring")
	return cmd
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout [ADDRESS]",
		Short: "Remove a remembered password from the keyring",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := credential.Open(c.cfg.KeyringPassphrase, c.logger)
			if err != nil {
				return err
			}

			address := c.cfg.Credentials().Address
			if len(args) == 1 {
				address = args[0]
			}
			if address == "" {
				creds, err := store.Recall("")
				if err != nil {
					return err
				}
				address = creds.Address
			}

			if err := store.Forget(address); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Forgot %s\n", address)
			return nil
		},
	}
}

func (c *cli) historyCommand() *cobra.Command {
	var (
		limit int
		label string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent fetches and verdicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.history == nil {
				return fmt.Errorf("history is disabled; set cache_path")
			}

			runs, err := c.history.RecentFetches(limit)
			if err != nil {
				return err
			}

			opts := cache.SearchOptions{Limit: limit}
			if label != "" {
				l, err := types.ParseLabel(label)
				if err != nil {
					return err
				}
				opts.Label = &l
			}
			verdicts, err := c.history.Search(opts)
			if err != nil {
				return err
			}

			counts, err := c.history.LabelCounts()
			if err != nil {
				return err
			}

			renderHistory(c.out, runs, verdicts, counts)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show")
	cmd.Flags().StringVar(&label, "label", "", "only show verdicts with this label (Phishing, Spam, Normal)")
	return cmd
}
