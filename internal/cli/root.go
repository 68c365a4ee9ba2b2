// Package cli implements the personalia command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/personalia-io/personalia-sdk-go/internal/version"
	"github.com/personalia-io/personalia-sdk-go/personalia"
	"github.com/personalia-io/personalia-sdk-go/personalia/cache"
)

const defaultConfigPath = "personalia.yaml"

// app holds global flags and the state shared by subcommands.
type app struct {
	cfgPath string
	isDebug bool
	apiKey  string
	baseURL string

	cfg    *Config
	logger *slog.Logger
	closer func() error
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "personalia",
		Short:         "Personalia content personalization client",
		Long:          `personalia generates personalized documents and images from Personalia templates.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer()
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", defaultConfigPath, "config file")
	flags.BoolVar(&a.isDebug, "debug", false, "enable debug logging")
	flags.StringVar(&a.apiKey, "api-key", "", "API key (default $PERSONALIA_API_KEY)")
	flags.StringVar(&a.baseURL, "base-url", "", "API base URL (default $PERSONALIA_BASE_URL)")

	rootCmd.AddCommand(
		newTemplateCmd(a),
		newContentCmd(a),
		newBatchCmd(a),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	_ = godotenv.Load()

	optional := !cmd.Flags().Changed("config")
	cfg, err := LoadConfig(a.cfgPath, optional)
	if err != nil {
		return err
	}
	if a.apiKey != "" {
		cfg.API.Key = a.apiKey
	}
	if a.baseURL != "" {
		cfg.API.BaseURL = a.baseURL
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if a.isDebug || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	a.logger = newLogger(cmd.ErrOrStderr(), level)
	slog.SetDefault(a.logger)
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}

// client builds an SDK client from the resolved configuration. extra
// options are applied last.
func (a *app) client(ctx context.Context, extra ...personalia.Option) (*personalia.Client, error) {
	if a.cfg.API.Key == "" {
		return nil, fmt.Errorf("no API key: set --api-key, api.key in %s, or PERSONALIA_API_KEY", a.cfgPath)
	}

	opts := []personalia.Option{
		personalia.WithAPIKey(a.cfg.API.Key),
		personalia.WithBaseURL(a.cfg.API.BaseURL),
		personalia.WithTimeout(a.cfg.API.Timeout),
		personalia.WithPolling(a.cfg.Poll.MaxAttempts, a.cfg.Poll.Interval),
		personalia.WithUserAgent(version.CLIUserAgent()),
		personalia.WithLogger(a.logger),
	}

	if a.cfg.Cache.Redis.URL != "" {
		rc := a.cfg.Cache.Redis
		if rc.TTL == 0 {
			rc.TTL = a.cfg.Cache.TTL
		}
		redisCache, err := cache.DialRedis(ctx, rc)
		if err != nil {
			return nil, err
		}
		a.closer = redisCache.Close
		opts = append(opts, personalia.WithTemplateCache(redisCache))
	} else {
		opts = append(opts, personalia.WithTemplateCache(cache.NewMemory(a.cfg.Cache.TTL)))
	}

	return personalia.NewClient(append(opts, extra...)...)
}
