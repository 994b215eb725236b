package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/arena/internal/adapters/backend"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/internal/session"
	"github.com/okian/arena/pkg/logger"
)

// cli holds the persistent flags and the configuration resolved from them.
type cli struct {
	configPath string
	token      string
	backendURL string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "arena",
		Short: "Esports platform client: leaderboards, payment verification and score editing",
		Long: `arena talks to the platform REST backend on behalf of one signed-in user.

Run "arena serve" to expose the BFF HTTP API, or use the leaderboard, verify
and scores commands directly from a terminal.

Configuration is layered: defaults, .env, the YAML file given by --config
(or ARENA_CONFIG), ARENA_* environment variables, then flags.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "YAML config file (overrides ARENA_CONFIG)")
	pf.StringVar(&c.token, "token", "", "bearer token (overrides ARENA_TOKEN)")
	pf.StringVar(&c.backendURL, "backend-url", "", "platform backend base URL")
	pf.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newServeCmd(c),
		newLeaderboardCmd(c),
		newVerifyCmd(c),
		newScoresCmd(c),
	)
	return root
}

// setup loads configuration and initializes logging for every subcommand.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := logger.InitWithWriter(cmd.ErrOrStderr()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if c.configPath != "" {
		if err := os.Setenv("ARENA_CONFIG", c.configPath); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("backend-url") {
		cfg.BackendURL = c.backendURL
	}
	if flags.Changed("token") {
		cfg.Token = c.token
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	c.cfg = cfg
	return nil
}

// session returns the CLI user's session from --token or ARENA_TOKEN.
func (c *cli) session() *session.Session {
	return session.New(c.cfg.Token)
}

// startService builds and starts a service for one command. The caller
// must Stop it.
func (c *cli) startService(ctx context.Context) (*service.Service, error) {
	log := logger.Get()
	client, err := backend.New(c.cfg.BackendURL,
		backend.WithTimeout(c.cfg.RequestTimeout()),
		backend.WithLogger(log.Named("backend")),
	)
	if err != nil {
		return nil, err
	}

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithBackend(client),
		service.WithTreeCacheTTL(c.cfg.TreeCacheTTL()),
		service.WithVerifyInterval(c.cfg.VerifyInterval()),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, nil
}

// userError turns err into the message a terminal user should see.
func userError(err error) error {
	if err == nil {
		return nil
	}
	if service.IsUnauthorized(err) {
		return fmt.Errorf("session expired or invalid, sign in again: %s", backend.Message(err))
	}
	if backend.StatusOf(err) != 0 || errors.Is(err, backend.ErrTransport) {
		return fmt.Errorf("%s", backend.Message(err))
	}
	return err
}
