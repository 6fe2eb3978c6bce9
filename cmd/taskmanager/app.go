package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/DhimiMohamed/taskmanager/account"
	"github.com/DhimiMohamed/taskmanager/activity"
	"github.com/DhimiMohamed/taskmanager/assistant"
	"github.com/DhimiMohamed/taskmanager/attachment"
	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/config"
	"github.com/DhimiMohamed/taskmanager/policy"
	"github.com/DhimiMohamed/taskmanager/provider"
	"github.com/DhimiMohamed/taskmanager/provider/mock"
	"github.com/DhimiMohamed/taskmanager/reminder"
	"github.com/DhimiMohamed/taskmanager/server/api"
	"github.com/DhimiMohamed/taskmanager/store"
	"github.com/DhimiMohamed/taskmanager/task"
	"github.com/DhimiMohamed/taskmanager/team"
)

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB

	accounts  *account.Service
	tasks     *task.SQLiteStore
	teams     *team.SQLiteStore
	reminders *reminder.Store
	activity  *activity.Store
	access    *api.Access
	bus       *comms.InMemoryBus
	mailer    *reminder.EmailNotifier
	provider  provider.Provider
	assistant *assistant.Assistant
}

// newApp opens the database and builds every store and service. Close
// releases the database.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := cfg.NewLogger(os.Stderr)
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	authz, err := policy.New(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	p, err := newProvider(ctx, cfg.AI)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		accounts:  account.NewService(account.NewSQLiteStore(db), cfg.Auth.BcryptCost, cfg.Auth.RequireVerified),
		tasks:     task.NewSQLiteStore(db),
		teams:     team.NewSQLiteStore(db),
		reminders: reminder.NewStore(db),
		activity:  activity.NewStore(db),
		bus:       comms.NewInMemoryBus(),
		provider:  p,
		mailer: reminder.NewEmailNotifier(reminder.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, logger),
	}
	a.access = &api.Access{Policy: authz, Teams: a.teams}

	tools := &assistant.Toolbox{
		Tasks:     a.tasks,
		Bus:       a.bus,
		CanDelete: a.access.CanDeleteTask,
		Logger:    logger,
	}
	a.assistant = assistant.New(p, assistant.NewRegistry(tools.Tools()...), a.tasks, assistant.Options{
		NativeTools:   cfg.AI.NativeTools,
		MaxToolRounds: cfg.AI.MaxToolRounds,
		Logger:        logger,
	})
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// notifier routes due reminders to email or in-app delivery.
func (a *app) notifier() reminder.Notifier {
	return reminder.Router{
		reminder.MethodEmail: a.mailer,
		reminder.MethodInApp: &reminder.InAppNotifier{Accounts: a.accounts.Store},
	}
}

// handlers builds the REST handlers. The transcriber is only set when a
// speech API key is configured.
func (a *app) handlers() *api.Handlers {
	h := &api.Handlers{
		Tasks:         a.tasks,
		Teams:         a.teams,
		Accounts:      a.accounts,
		Reminders:     a.reminders,
		Activity:      a.activity,
		Attachments:   attachment.NewStore(a.db, a.cfg.Storage.AttachmentsDir, a.cfg.Storage.MaxAttachmentBytes),
		Access:        a.access,
		Bus:           a.bus,
		Assistant:     a.assistant,
		Mailer:        a.mailer,
		Logger:        a.logger,
		MaxVoiceBytes: a.cfg.Speech.MaxUploadBytes,
	}
	if a.cfg.Speech.APIKey != "" {
		h.Transcriber = provider.NewTranscriber(provider.TranscriberConfig{
			APIKey:  a.cfg.Speech.APIKey,
			Model:   a.cfg.Speech.Model,
			BaseURL: a.cfg.Speech.BaseURL,
		})
	}
	return h
}

// newProvider builds the completion backend named by cfg.Provider.
func newProvider(ctx context.Context, cfg config.AIConfig) (provider.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}), nil
	case "gemini":
		gc := provider.GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model}
		if cfg.Timeout > 0 {
			gc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		}
		p, err := provider.NewGeminiProvider(ctx, gc)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		return p, nil
	case "mock":
		return mock.New("I can help you manage your tasks. Try asking me to create one."), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
