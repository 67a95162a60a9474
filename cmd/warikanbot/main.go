package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/susu3304/warikanbot/internal/api"
	"github.com/susu3304/warikanbot/internal/bot"
	"github.com/susu3304/warikanbot/internal/commands"
	"github.com/susu3304/warikanbot/internal/config"
	"github.com/susu3304/warikanbot/internal/conversation"
	"github.com/susu3304/warikanbot/internal/db"
	"github.com/susu3304/warikanbot/internal/invitation"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/participant"
	"github.com/susu3304/warikanbot/internal/reconcile"
	"github.com/susu3304/warikanbot/internal/settlement"
)

func main() {
	if err := run(); err != nil {
		slog.Error("warikanbot stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the store
	store, err := db.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("store opened", "driver", cfg.StoreDriver)

	catalog, err := ledger.LoadCatalog(cfg.CategoryFile)
	if err != nil {
		return err
	}

	entries := ledger.NewRepository(store, cfg.Location)
	invitations := invitation.NewRepository(store)
	directory := participant.NewDirectory(invitations, cfg.DirectoryMaxAge)
	invitations.SetInvalidator(directory)
	reconciler := reconcile.NewService(entries, settlement.NewRepository(store))
	engine := conversation.NewEngine(conversation.NewSessionRepository(store), entries, directory)

	// Initialize Discord bot
	render := commands.NewRenderer(catalog, directory)
	handler := commands.NewHandler(engine, reconciler, directory, render, cfg.Location, cfg.WebUIBaseURL)
	discordBot, err := bot.New(cfg.DiscordToken, handler, bot.Options{
		ChannelID:         cfg.ChannelID,
		ReminderChannelID: cfg.ReminderChannelID,
	})
	if err != nil {
		return err
	}

	// Initialize API server
	apiServer := api.New(cfg, api.Services{
		Entries:     entries,
		Reconcile:   reconciler,
		Invitations: invitations,
		Directory:   directory,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return discordBot.Run(ctx) })
	g.Go(func() error { return apiServer.Start(ctx) })
	g.Go(func() error { return db.NewSweeper(store, cfg.SweepInterval).Run(ctx) })
	g.Go(func() error {
		return discordBot.Reminder(reconciler, render, cfg.ReminderInterval, cfg.Location).Run(ctx)
	})

	err = g.Wait()
	slog.Info("Shutting down...")
	return err
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
