// Package cli implements readoctl, a terminal client for the ReadoAI API.
package cli

import (
	"bufio"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/readoai/readoai-go/internal/client"
	"github.com/readoai/readoai-go/internal/session"
)

const defaultServer = "http://localhost:5000"

// app is shared by all subcommands of one invocation.
type app struct {
	server      string
	sessionFile string

	holder *session.Holder
	client *client.Client
	reader *bufio.Reader
}

// NewRootCmd creates the root command for readoctl.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "readoctl",
		Short: "ReadoAI command line client",
		Long: `readoctl registers, logs in and inspects the current ReadoAI account.
The session token is kept in a local file between runs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.setup(cmd)
			return nil
		},
	}

	server := os.Getenv("READOAI_SERVER")
	if server == "" {
		server = defaultServer
	}
	cmd.PersistentFlags().StringVar(&a.server, "server", server, "API server URL (env READOAI_SERVER)")
	cmd.PersistentFlags().StringVar(&a.sessionFile, "session-file", session.DefaultPath(), "where the session is stored")

	cmd.AddCommand(newRegisterCmd(a))
	cmd.AddCommand(newLoginCmd(a))
	cmd.AddCommand(newMeCmd(a))
	cmd.AddCommand(newLogoutCmd(a))
	cmd.AddCommand(newStatusCmd(a))

	return cmd
}

func (a *app) setup(cmd *cobra.Command) {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

	a.holder = session.NewHolder(session.NewFileStorage(a.sessionFile))
	a.holder.Subscribe(func(s session.State) {
		if s.LoggedIn() {
			logger.Info("session stored", "user_id", s.User.ID, "email", s.User.Email)
			return
		}
		logger.Info("session cleared")
	})

	a.client = client.New(a.server, a.holder)
	a.reader = bufio.NewReader(cmd.InOrStdin())
}
