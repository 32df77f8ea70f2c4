package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Terminal client for the chat sync server",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(newChatCmd())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newChatCmd() *cobra.Command {
	var opts sessionOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat over the realtime channel",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Token == "" {
				opts.Token = os.Getenv("CHATSYNC_TOKEN")
			}
			return runSession(cmd.Context(), opts)
		},
	}

	server := os.Getenv("CHATSYNC_SERVER")
	if server == "" {
		server = "http://localhost:3000"
	}
	cmd.Flags().StringVar(&opts.Server, "server", server, "server base URL")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token (defaults to $CHATSYNC_TOKEN)")
	cmd.Flags().DurationVar(&opts.SendTimeout, "timeout", 2*time.Minute, "give up waiting for a reply after this long")
	cmd.Flags().StringVar(&opts.HistoryFile, "history-file", "/tmp/chatctl.history", "readline history file")
	return cmd
}
