package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Manabreaker/FitAI-tg/internal/ai"
	"github.com/Manabreaker/FitAI-tg/internal/config"
	"github.com/Manabreaker/FitAI-tg/internal/reminder"
	"github.com/Manabreaker/FitAI-tg/internal/scheduler"
	"github.com/Manabreaker/FitAI-tg/internal/store"
	"github.com/Manabreaker/FitAI-tg/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    store.Repo
	rem     *reminder.Manager
	router  *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting FitAI bot", zap.String("http", a.cfg.HTTPAddr))

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	aiClient := ai.New(a.cfg.OpenAIKey, a.cfg.OpenAIModel, repo, a.log)
	sched := scheduler.New(a.log)
	a.rem = reminder.New(repo, sched, nil, aiClient, a.log,
		a.cfg.MisfireGrace, a.cfg.InactivityWindow)
	a.router = telegram.NewRouter(a.bot, a.log, repo, a.rem, aiClient)
	a.rem.SetNotifier(a.router)

	// Re-arm persisted notifications before accepting live traffic.
	if err := a.rem.Recover(ctx); err != nil {
		a.log.Error("recovery failed", zap.Error(err))
		return err
	}

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}

			a.rem.Stop()
			if a.repo != nil {
				_ = a.repo.Close()
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
