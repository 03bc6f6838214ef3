package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/jirabot/internal/delivery"
	"github.com/user/jirabot/internal/dispatch"
	"github.com/user/jirabot/internal/format"
	"github.com/user/jirabot/internal/gateway"
	"github.com/user/jirabot/internal/jira"
	"github.com/user/jirabot/internal/rules"
	"github.com/user/jirabot/internal/scheduler"
	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/telegram"
	"github.com/user/jirabot/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the jirabot daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "jirabot.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.Jira.BaseURL == "" || cfg.Telegram.Token == "" {
		return fmt.Errorf("jira.base_url and telegram.token must be configured (run `jirabot setup`)")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Stores
	states := state.NewStore()
	links := state.NewLinkStore(filepath.Join(cfg.DataDir, "links.json"))
	reminders := state.NewReminderStore(filepath.Join(cfg.DataDir, "reminders.json"))

	// Jira client
	tracker, err := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken, cfg.Jira.UserLinks)
	if err != nil {
		return fmt.Errorf("create jira client: %w", err)
	}

	// Dispatch engine and router
	engine := dispatch.NewEngine()
	router := gateway.New(engine, states, int64(cfg.MaxConcurrent))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router.Start(ctx)
	defer router.Stop()

	// Telegram adapter
	adapter, err := telegram.New(cfg.Telegram.Token, router)
	if err != nil {
		return fmt.Errorf("create telegram adapter: %w", err)
	}

	// Delivery registry
	deliveryReg := delivery.NewRegistry()
	deliveryReg.Register(telegram.ChatKeyPrefix+":", adapter.DeliveryHandler())

	// Scheduler fires reminders back into the originating chat.
	sched := scheduler.New(reminders, func(r *state.Reminder) {
		msg := fmt.Sprintf("Reminder: %s", r.IssueKey)
		if r.Note != "" {
			msg += " - " + r.Note
		}
		if err := deliveryReg.Deliver(r.ChatKey, msg); err != nil {
			slog.Error("reminder delivery failed", "reminder", r.ID, "chat_key", r.ChatKey, "error", err)
		}
	})

	// Rules
	deps := &rules.Deps{
		Msg:       adapter,
		Tracker:   tracker,
		States:    states,
		Format:    format.New(cfg.Jira.BaseURL),
		Links:     links,
		Reminders: reminders,
		Files:     adapter,
		Schedule: func(r *state.Reminder) error {
			if err := scheduler.Validate(r.Schedule); err != nil {
				return err
			}
			return sched.Add(r)
		},
		ChatKeyPrefix: telegram.ChatKeyPrefix,
	}
	rules.Register(engine, deps)

	go adapter.Start(ctx)
	slog.Info("telegram adapter started")

	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started")

	// Webhook HTTP server
	if cfg.HTTP.Enabled {
		webhookSrv := webhook.NewServer(links, deliveryReg)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: webhookSrv,
		}
		go func() {
			slog.Info("webhook server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("webhook server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	slog.Info("jirabot started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"jira_base_url", cfg.Jira.BaseURL,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
