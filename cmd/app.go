package cmd

import (
	"fmt"

	"sportbot/chat"
	"sportbot/config"
	"sportbot/fetch"
	"sportbot/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// app bundles the shared dependencies every subcommand needs. It is built
// once in the root command's PersistentPreRunE and torn down in
// PersistentPostRunE.
type app struct {
	cfg     *config.Config
	db      *store.DB
	chat    *chat.Client
	fetcher *fetch.Fetcher
	verbose bool
	dryRun  bool
}

func newApp(cfg *config.Config, verbose, dryRun bool) (*app, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var chatClient *chat.Client
	if cfg.TelegramToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init telegram bot: %w", err)
		}
		chatClient = chat.New(bot, 1, 1)
	}

	return &app{
		cfg:     cfg,
		db:      db,
		chat:    chatClient,
		fetcher: fetch.New(),
		verbose: verbose,
		dryRun:  dryRun,
	}, nil
}

func (a *app) close() error {
	return a.db.Close()
}

func (a *app) chatID() int64 {
	return a.cfg.ChannelID
}
