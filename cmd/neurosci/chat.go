package main

import (
	"net/http"
	"time"

	"github.com/RichardoC/neurosci-ai/internal/chat"
	"github.com/RichardoC/neurosci-ai/internal/client"
	"github.com/RichardoC/neurosci-ai/internal/config"
	"github.com/RichardoC/neurosci-ai/internal/db"
	"github.com/RichardoC/neurosci-ai/internal/llm"
	"github.com/RichardoC/neurosci-ai/internal/repl"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	requestTimeout = 2 * time.Minute
	renderWidth    = 80
)

func newChatCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := config.LoadClient(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			repo, err := db.Open(cfg.Store, cfg.StorePath, logger)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, repo.Close()) }()

			completer, err := newCompleter(cfg, logger)
			if err != nil {
				return err
			}

			ctrl := chat.New(repo, completer, logger)
			if err := ctrl.Restore(cmd.Context()); err != nil {
				logger.Warn("Starting with an empty conversation list", zap.Error(err))
			}

			var renderer repl.Renderer = repl.PlainRenderer{}
			if md, err := repl.NewMarkdownRenderer(renderWidth); err == nil {
				renderer = md
			} else {
				logger.Debug("Markdown rendering unavailable", zap.Error(err))
			}

			term := repl.NewTerminal(cfg.HistoryFile, logger)
			defer func() { err = multierr.Append(err, term.Close()) }()

			return repl.NewSession(ctrl, cmd.OutOrStdout(), renderer, logger).Run(cmd.Context(), term)
		},
	}

	flags := cmd.Flags()
	flags.String(config.KeyServerURL, "http://localhost:8100", "URL of the neurosci serve endpoint")
	flags.String(config.KeyStore, "sqlite", "conversation store: sqlite, json or memory")
	flags.String(config.KeyStorePath, "neurosci.db", "path of the conversation store")
	flags.Bool(config.KeyDirect, false, "call the completion API in-process instead of through the server")
	flags.String(config.KeyHistory, "", "file for input history (disabled when empty)")
	mustBind(v, flags, config.KeyServerURL, config.KeyStore, config.KeyStorePath, config.KeyDirect, config.KeyHistory)
	return cmd
}

func newCompleter(cfg *config.Client, logger *zap.Logger) (chat.Completer, error) {
	httpClient := &http.Client{Timeout: requestTimeout}
	if !cfg.Direct {
		return client.New(cfg.ServerURL, httpClient, logger), nil
	}
	gateway, err := llm.New(llm.Config{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		HTTPClient: httpClient,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize completion gateway")
	}
	return chat.NewDirectCompleter(gateway), nil
}
