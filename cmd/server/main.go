package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	wappalyzer "github.com/projectdiscovery/wappalyzergo"
	"gopkg.in/natefinch/lumberjack.v2"

	httpadapter "prospector/internal/adapters/http"
	"prospector/internal/adapters/memory"
	pg "prospector/internal/adapters/postgres"
	redisstore "prospector/internal/adapters/redis"
	"prospector/internal/audit"
	"prospector/internal/bridge"
	"prospector/internal/config"
	"prospector/internal/detect"
	"prospector/internal/domain"
	"prospector/internal/fetch"
	"prospector/internal/metrics"
	"prospector/internal/pipeline"
	"prospector/internal/ports"
	"prospector/internal/session"
	"prospector/internal/workers/analysisrunner"
)

// Companion-surface session material shared through the state store. The
// companion writes these on sign-in; sessionSync reads them back.
const (
	keyCompanionToken = "prospector:companion:token"
	keyCompanionUser  = "prospector:companion:user"
)

func setupLogger(cfg config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0750); err != nil {
			slog.Error("creating log directory failed", "path", cfg.LogFile, "error", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, rotator)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}).
		WithAttrs([]slog.Attr{slog.String("service", "prospector")})
	slog.SetDefault(slog.New(handler))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("incomplete configuration", "error", err)
	}
	setupLogger(cfg)
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.APIBaseURL == "" {
		slog.Error("API_BASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis is optional; without it state is process-local and audit scores
	// are not reused across restarts.
	var stateStore ports.StateStore
	var auditCache ports.AuditCache
	if rs, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err == nil {
		defer rs.Close()
		stateStore = rs
		auditCache = rs.AuditCache()
	} else {
		slog.Warn("redis unavailable, using in-process state", "error", err)
		stateStore = memory.NewStore()
		auditCache = memory.NewAuditCache()
	}

	clock := clockwork.NewRealClock()

	engine := detect.New()
	if cfg.FingerprintEnrichment {
		if fp, err := wappalyzer.New(); err == nil {
			engine = detect.NewWithFingerprint(fp)
		} else {
			slog.Warn("fingerprint enrichment unavailable", "error", err)
		}
	}

	hub := bridge.NewHub()
	pageEP := hub.Register(ctx, bridge.PageContext)
	backgroundEP := hub.Register(ctx, bridge.BackgroundContext)
	companionEP := hub.Register(ctx, bridge.CompanionContext)
	hub.Register(ctx, bridge.PanelContext)

	bridge.AttachRelay(backgroundEP, hub)
	bridge.AttachPageContext(pageEP, fetch.New(cfg.FetchTimeout), engine, clock)
	companionEP.Handle(bridge.ActionSessionSync, func(ctx context.Context, _ json.RawMessage) (any, error) {
		token, _, err := stateStore.Get(ctx, keyCompanionToken)
		if err != nil {
			return nil, err
		}
		var user domain.User
		if raw, ok, _ := stateStore.Get(ctx, keyCompanionUser); ok {
			_ = json.Unmarshal([]byte(raw), &user)
		}
		return map[string]any{"token": token, "user": user}, nil
	})

	sess := session.New(stateStore, hub, &http.Client{Timeout: 15 * time.Second})
	sess.Load(ctx)

	auditClient := audit.NewClient(cfg.APIBaseURL, sess)
	orchestrator := audit.New(auditClient, auditCache, clock, cfg.AuditPollInterval, cfg.AuditPollMaxAttempts)

	crm := pipeline.NewCRMClient(cfg.APIBaseURL, sess)
	svc := pipeline.NewService(crm, db, db)

	processor := &analysisrunner.PipelineProcessor{
		Analyses: db,
		Hub:      hub,
		Audits:   orchestrator,
		Pipeline: svc,
	}
	if cfg.AnalysisWorkers > 0 {
		go analysisrunner.Run(ctx, db, processor, cfg.AnalysisWorkers, 500*time.Millisecond)
		slog.Info("analysis workers started", "count", cfg.AnalysisWorkers)
	}

	if cfg.MetricsAddr != "" {
		go metrics.Expose(cfg.MetricsAddr)
	}

	srv := httpadapter.New(svc, crm, auditClient, sess, hub, db, processor)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	errCh := make(chan error, 1)
	go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, r) }()
	slog.Info("listening", "address", cfg.ListenAddr, "env", cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
		cancel()
		time.Sleep(300 * time.Millisecond)
	case err := <-errCh:
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
