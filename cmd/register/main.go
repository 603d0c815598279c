package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/punchamoorthee/nobreverify/internal/config"
	"github.com/punchamoorthee/nobreverify/internal/discord"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.ApplicationID == "" {
		logger.Error("APPLICATION_ID environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := discord.NewClient(cfg.DiscordAPI, cfg.BotToken, cfg.GuildID, cfg.HTTPTimeout, logger)
	cmds := discord.Commands()
	if err := client.RegisterCommands(ctx, cfg.ApplicationID, cmds); err != nil {
		logger.Error("command registration failed", "error", err)
		os.Exit(1)
	}

	for _, c := range cmds {
		logger.Info("registered command", "name", c.Name, "guild_id", cfg.GuildID)
	}
}
