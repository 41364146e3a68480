// Package cli implements fairpayctl, a command-line client for the session service.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fairpay/backend/services/session-service/internal/clients"
)

var Version = "dev"

const defaultServer = "http://localhost:8080"

type options struct {
	server  string
	token   string
	timeout time.Duration
}

func (o *options) client() *clients.SessionClient {
	return clients.NewSessionClient(o.server, o.token, clients.NewDefaultHTTPClient(o.timeout))
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "fairpayctl",
		Short:         "Drive a FairPay metered session",
		Long:          "fairpayctl starts and stops metered sessions, reports usage and inspects transactions on a running session service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("FAIRPAY_SERVER", defaultServer), "Session service base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("FAIRPAY_TOKEN"), "Bearer token issued by fairpayctl connect")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "HTTP request timeout")

	root.AddCommand(
		newHealthCmd(opts),
		newChallengeCmd(opts),
		newConnectCmd(opts),
		newWalletCmd(opts),
		newStartCmd(opts),
		newStopCmd(opts),
		newResetCmd(opts),
		newReportCmd(opts),
		newUsageCmd(opts),
		newDepositCmd(opts),
		newStatusCmd(opts),
		newHistoryCmd(opts),
	)

	root.Version = Version
	root.SetVersionTemplate(fmt.Sprintf("fairpayctl %s\n", Version))

	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}
