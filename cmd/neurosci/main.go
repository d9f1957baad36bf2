package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/RichardoC/neurosci-ai/internal/config"
	"github.com/RichardoC/neurosci-ai/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "neurosci",
		Short:         "neurosci.ai: a chat assistant for neuroscience behavior analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// A missing .env is fine.
			_ = godotenv.Load()
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String(config.KeyLogLevel, "info", "log level (debug, info, warn, error)")
	flags.String(config.KeyLogFormat, "json", `log format, "json" or "console"`)
	flags.String(config.KeyBaseURL, "", "base URL of the OpenAI-compatible completion API")
	flags.String(config.KeyModel, "", "completion model")
	mustBind(v, flags, config.KeyLogLevel, config.KeyLogFormat, config.KeyBaseURL, config.KeyModel)

	root.AddCommand(newServeCmd(v), newChatCmd(v))
	return root
}

// mustBind binds each named flag to the viper key of the same name.
func mustBind(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func newLogger(cfg config.Logging) (*zap.Logger, error) {
	return logging.New(cfg.Level, cfg.Format)
}

func main() {
	v := viper.New()
	if err := config.SetDefaults(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
	defer stop()

	if err := newRootCmd(v).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
