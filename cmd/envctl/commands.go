package main

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bcnelson/env-manager/internal/client"
	"github.com/bcnelson/env-manager/internal/config"
	"github.com/bcnelson/env-manager/internal/logger"
	"github.com/bcnelson/env-manager/internal/session"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	out    *printer

	url      string
	token    string
	timeout  time.Duration
	jsonMode bool
	record   bool

	sess *session.Session
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "envctl",
		Short: "Manage environment variables and switch between group presets",
		Long: `envctl talks to a running env-manager server. It lists and edits the
user and system environment variables of the server's host, and switches
between named presets stored in groups.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.url, "url", "", "server URL (default $ENVMGR_URL or http://127.0.0.1:8080)")
	flags.StringVar(&a.token, "token", "", "API bearer token (default $ENVMGR_TOKEN)")
	flags.DurationVar(&a.timeout, "timeout", 0, "request timeout (default $ENVMGR_TIMEOUT, none if unset)")
	flags.BoolVar(&a.jsonMode, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newEnvCmd(a),
		newGroupCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// connect opens the session used by a command. The privilege level is
// detected once here and not re-checked.
func (a *app) connect(cmd *cobra.Command) error {
	a.out = newPrinter(a.stdout, a.jsonMode)

	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if a.url != "" {
		cfg.URL = a.url
	}
	if a.token != "" {
		cfg.Token = a.token
	}
	if a.timeout > 0 {
		cfg.Timeout = a.timeout
	}

	log := logger.NewWithWriter(a.stderr, "envctl", logger.ParseLevel(cfg.Log.Level), "text")

	c, err := client.New(cfg.URL, client.WithToken(cfg.Token), client.WithTimeout(cfg.Timeout))
	if err != nil {
		return err
	}
	sess, err := session.Open(cmd.Context(), c, session.Options{ServerActivation: a.record, Logger: log})
	if err != nil {
		return err
	}
	a.sess = sess
	return nil
}

// withSession wraps a command body so it runs against an open session.
func (a *app) withSession(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.connect(cmd); err != nil {
			return err
		}
		return fn(cmd, args)
	}
}
