package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/AndreyMartjushev/takingPills/internal/config"
	"github.com/AndreyMartjushev/takingPills/internal/domain"
	"github.com/AndreyMartjushev/takingPills/internal/metrics"
	"github.com/AndreyMartjushev/takingPills/internal/scheduler"
	"github.com/AndreyMartjushev/takingPills/internal/store"
	"github.com/AndreyMartjushev/takingPills/internal/telegram"
	"github.com/AndreyMartjushev/takingPills/internal/tracker"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    store.Repo
	router  *telegram.Router
	sched   *scheduler.Scheduler
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

// StoreOptions maps the database settings onto store.Options.
func StoreOptions(cfg config.Config) store.Options {
	return store.Options{
		Driver:  cfg.DBDriver,
		DSN:     cfg.DBDSN,
		MinIdle: cfg.DBPoolMin,
		MaxOpen: cfg.DBPoolMax,
	}
}

func (a *App) wire(ctx context.Context) error {
	repo, err := store.Open(ctx, StoreOptions(a.cfg), a.log.Named("store"))
	if err != nil {
		return err
	}
	a.repo = repo
	a.log.Info("database ready", zap.String("driver", a.cfg.DBDriver))

	zones := domain.NewZones(a.cfg.DefaultTZ, a.log.Named("zones"))
	m := metrics.New()
	svc := tracker.New(repo, zones, m, a.log.Named("tracker"), tracker.Options{
		SnoozeMinutes: a.cfg.SnoozeMinutes,
		LeadMinutes:   a.cfg.RemindBeforeMinutes,
	})

	a.router = telegram.NewRouter(a.bot, a.log.Named("telegram"), svc, zones, m, a.cfg.AdminChatID)
	a.sched = scheduler.New(repo, zones, m, a.router, a.router, a.log.Named("scheduler"), scheduler.Options{
		LeadMinutes:     a.cfg.RemindBeforeMinutes,
		SummaryHour:     a.cfg.SummaryHour,
		TickInterval:    a.cfg.TickInterval,
		SummaryInterval: a.cfg.SummaryInterval,
	})
	a.router.SetSummarizer(a.sched)
	return nil
}

// Run serves updates and runs the scheduler until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting tabletbot",
		zap.String("bot", a.bot.Self.UserName),
		zap.String("http", a.cfg.HTTPAddr),
	)

	if err := a.wire(ctx); err != nil {
		a.log.Error("startup failed", zap.Error(err))
		return err
	}

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	schedDone := make(chan error, 1)
	go func() { schedDone <- a.sched.Run(ctx) }()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			if schedDone != nil {
				if err := <-schedDone; err != nil {
					a.log.Warn("scheduler stopped with error", zap.Error(err))
				}
			}
			if err := a.repo.Close(); err != nil {
				a.log.Warn("database close error", zap.Error(err))
			}
			return nil

		case err := <-schedDone:
			schedDone = nil
			if err != nil {
				a.log.Error("scheduler failed", zap.Error(err))
				_ = a.httpSrv.Close()
				_ = a.repo.Close()
				return err
			}

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

// Migrate applies pending schema migrations and exits.
func Migrate(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	repo, err := store.Open(ctx, StoreOptions(cfg), log.Named("store"))
	if err != nil {
		return err
	}
	log.Info("migrations applied", zap.String("driver", cfg.DBDriver))
	return repo.Close()
}
