package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/remotevibe/bridge/internal/agent"
	"github.com/remotevibe/bridge/internal/bridge"
	"github.com/remotevibe/bridge/internal/bridge/transcribe"
	"github.com/remotevibe/bridge/internal/config"
	"github.com/remotevibe/bridge/internal/db"
	"github.com/remotevibe/bridge/internal/discord"
	"github.com/remotevibe/bridge/internal/lifecycle"
	"github.com/remotevibe/bridge/internal/voice"
)

const serviceName = "remotevibe"

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord bridge daemon",
		Long:  "Connects to Discord, supervises the coding-agent process, and bridges threads and voice channels to it until stopped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "remotevibe.yaml", "path to remotevibe config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	logger := log.New(cmd.OutOrStdout(), "remotevibe: ", log.LstdFlags)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ln, err := lifecycle.AcquireLock(serviceName)
	if err != nil {
		return err
	}
	defer ln.Close()

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = db.DefaultPath()
		if err != nil {
			return err
		}
	}
	gdb, err := db.Connect(dbPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", dbPath, err)
	}

	supervisor := agent.New(cfg.Agent, cfg.Providers, logger)

	adapter, err := discord.New(discord.AdapterOpts{
		BotToken: cfg.Discord.Token(),
		AppID:    cfg.Discord.AppID,
		GuildID:  cfg.Discord.GuildID,
	})
	if err != nil {
		return fmt.Errorf("create discord adapter: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := adapter.Connect(ctx); err != nil {
		return fmt.Errorf("connect to discord: %w", err)
	}

	state := bridge.NewState()
	orchestrator := bridge.NewOrchestrator(supervisor, state, gdb, adapter, logger)
	mediator := bridge.NewPermissionMediator(state, adapter)
	transcriber := transcribe.NewChain(cfg.Voice)
	voiceManager := voice.NewManager(cfg.Voice, supervisor, gdb, logger)

	router := discord.NewRouter(adapter, orchestrator, mediator, supervisor, gdb, cfg, transcriber, logger)
	if err := adapter.RegisterRouter(router, cfg.Discord.AppID, cfg.Discord.GuildID); err != nil {
		return fmt.Errorf("register discord commands: %w", err)
	}
	if err := adapter.WireVoice(voiceManager, gdb, logger); err != nil {
		return fmt.Errorf("wire voice pipeline: %w", err)
	}

	lc := lifecycle.NewController()
	lc.OnShutdown(func() error {
		voiceManager.ShutdownAll()
		return nil
	})
	lc.OnShutdown(func() error {
		supervisor.Shutdown()
		return nil
	})
	lc.OnShutdown(func() error {
		return db.Close(gdb)
	})
	lc.OnShutdown(func() error {
		return adapter.Close()
	})

	logger.Printf("serving as guild %s, app %s", cfg.Discord.GuildID, cfg.Discord.AppID)
	return lc.Wait(ctx)
}
