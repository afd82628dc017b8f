// scribe TUI - A terminal client for chat-driven research reports.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/jeranaias/scribe-tui/internal/api"
	"github.com/jeranaias/scribe-tui/internal/config"
	"github.com/jeranaias/scribe-tui/internal/logging"
	"github.com/jeranaias/scribe-tui/internal/model"
	"github.com/jeranaias/scribe-tui/internal/report"
	"github.com/jeranaias/scribe-tui/internal/run"
	"github.com/jeranaias/scribe-tui/internal/session"
	"github.com/jeranaias/scribe-tui/internal/ui/chat"
	"github.com/jeranaias/scribe-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference so coordinator and consumer hooks, which fire on
// worker goroutines and timers, can deliver messages into the event loop.
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func deliver(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.scribe/config.toml)")
	conversationID := flag.String("conversation", "", "conversation id to open (default: most recent)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("scribe %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "scribe requires an interactive terminal")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving log path: %v\n", err)
		os.Exit(1)
	}
	logger, closeLog, err := logging.Setup(logPath, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	logger.Info().Str("version", Version).Msg("scribe starting")

	client := api.NewClient(cfg.API.BaseURL, api.StaticToken(cfg.API.Token), logger).
		WithMaxRetries(cfg.API.MaxRetries)
	if !client.IsConfigured() {
		fmt.Fprintln(os.Stderr, "No backend configured. Set api.base_url in ~/.scribe/config.toml or SCRIBE_API_URL.")
		os.Exit(1)
	}

	// Local report persistence is best-effort: a broken store degrades to an
	// in-memory report, not a startup failure.
	var store *report.Store
	if storePath, err := cfg.ReportStorePath(); err == nil {
		store, err = report.OpenStore(storePath)
		if err != nil {
			logger.Warn().Err(err).Msg("report store unavailable")
			store = nil
		}
	}
	if store != nil {
		defer store.Close()
	}

	conv, err := resolveConversation(client, *conversationID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening conversation: %v\n", err)
		os.Exit(1)
	}

	coord := session.NewCoordinator(client, conv.ID, session.Hooks{
		OnCacheChanged: func(s model.Snapshot) {
			deliver(chat.SnapshotMsg{Snapshot: s})
		},
		OnConversationsChanged: func() {
			deliver(chat.ConversationsInvalidatedMsg{})
		},
		OnRunStarted: func(runID string) {
			deliver(chat.RunStartedMsg{RunID: runID})
		},
	}, logger)

	consumer := run.NewConsumer(client, run.Hooks{
		OnUpdate: func(st model.RunState) {
			deliver(chat.RunUpdatedMsg{State: st})
		},
		OnReport: func(sections []report.Section) {
			deliver(chat.ReportSectionsMsg{Sections: sections})
		},
		OnClear: func() {
			deliver(chat.RunClearedMsg{})
		},
		Unsubscribe: func() {
			deliver(chat.RunUnsubscribeMsg{})
		},
	}, logger)

	theme := styles.NewTheme(cfg.UI.Theme)
	m := chat.New(cfg, theme, client, coord, consumer, store, logger)
	m.SetConversation(conv)

	// Hot-reload config edits into the running UI.
	if watcher := startConfigWatcher(*configPath, logger); watcher != nil {
		defer watcher.Close()
	}

	p := tea.NewProgram(m, tea.WithAltScreen())

	programMu.Lock()
	programRef = p
	programMu.Unlock()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running scribe: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads from an explicit path when given, else the default chain
// (TOML, then JSON, then built-in defaults plus env overrides).
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// startConfigWatcher wires config hot reload. Failures are logged and
// ignored: a dead watcher only disables live edits.
func startConfigWatcher(explicitPath string, logger zerolog.Logger) *config.Watcher {
	path := explicitPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return nil
		}
		path = p
	}

	watcher, err := config.NewWatcher(path, func(cfg *config.Config) {
		deliver(chat.ConfigReloadedMsg{Config: cfg})
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("config watcher unavailable")
		return nil
	}
	if err := watcher.Watch(); err != nil {
		logger.Warn().Err(err).Msg("config watcher failed to start")
		watcher.Close()
		return nil
	}
	return watcher
}

// resolveConversation picks the conversation to open: the explicit id when
// given, else the most recently updated, else a fresh one.
func resolveConversation(client *api.Client, id string) (model.Conversation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	convs, err := client.ListConversations(ctx)
	if err != nil {
		return model.Conversation{}, err
	}

	if id != "" {
		for _, conv := range convs {
			if conv.ID == id {
				return conv, nil
			}
		}
		return model.Conversation{}, fmt.Errorf("conversation %q not found", id)
	}

	if len(convs) > 0 {
		newest := convs[0]
		for _, conv := range convs[1:] {
			if conv.UpdatedAt.After(newest.UpdatedAt) {
				newest = conv
			}
		}
		return newest, nil
	}

	return client.CreateConversation(ctx, "")
}
