package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devnet/internal/api"
	"devnet/internal/config"
	"devnet/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose    bool
	configPath string
	serverURL  string
	timeout    time.Duration

	logger *zap.Logger
	cfg    config.Client
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "devchat",
	Short: "Terminal client for devnet",
	Long: `devchat talks to a devnet server: sign up, follow people, post to the
feed, and chat in realtime with the people you follow.

Credentials are kept in ~/.devchat.yaml after "devchat login".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		var err error
		if logger, err = logging.New(level); err != nil {
			return err
		}

		if configPath == "" {
			if configPath, err = config.DefaultClientPath(); err != nil {
				return err
			}
		}
		if cfg, err = config.LoadClient(configPath); err != nil {
			return err
		}
		if serverURL != "" {
			cfg.Server = serverURL
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.devchat.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL (overrides the config file)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "Request timeout")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(unfollowCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// client returns an API client for the configured server and token.
func client() *api.Client {
	return api.New(cfg.Server, api.WithToken(cfg.Token))
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
