package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/vbonduro/eatinformed/internal/analysis"
	"github.com/vbonduro/eatinformed/internal/auth"
	"github.com/vbonduro/eatinformed/internal/config"
	"github.com/vbonduro/eatinformed/internal/db"
	"github.com/vbonduro/eatinformed/internal/gateway"
	"github.com/vbonduro/eatinformed/internal/gateway/claude"
	"github.com/vbonduro/eatinformed/internal/gateway/gemini"
	"github.com/vbonduro/eatinformed/internal/gateway/ollama"
	"github.com/vbonduro/eatinformed/internal/logging"
	"github.com/vbonduro/eatinformed/internal/service"
	"github.com/vbonduro/eatinformed/internal/store"
	"github.com/vbonduro/eatinformed/internal/web"
	"github.com/vbonduro/eatinformed/internal/web/templates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	gw := newGateway(ctx, cfg, logger)
	scans := service.NewScanService(gw, analysis.NewExtractor(gw, logger), analysis.NewAssessor(gw, logger), logger)

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET is not set; using a random secret, sessions will not survive a restart")
		secret = uuid.NewString()
	}
	tokens := auth.NewTokenIssuer([]byte(secret), cfg.TokenTTL)
	accounts := service.NewAccountService(store.NewUserStore(database), tokens, logger)

	server := web.NewServer(scans, accounts, templates.FS, web.Options{
		MaxImageBytes:     cfg.MaxImageBytes,
		ScanRatePerMinute: cfg.ScanRatePerMinute,
		ScanBurst:         cfg.ScanBurst,
	}, logger)

	if err := server.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

// newGateway picks the model provider. A missing credential leaves AI
// offline rather than stopping the server.
func newGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) gateway.Gateway {
	switch cfg.ModelBackend {
	case config.BackendClaude:
		if cfg.ClaudeAPIKey == "" {
			logger.Warn("CLAUDE_API_KEY is not set; AI analysis is offline")
			return gateway.Unavailable("CLAUDE_API_KEY is not configured")
		}
		logger.Info("using Claude model backend", "model", cfg.ClaudeModel)
		return gateway.Available(claude.New(cfg.ClaudeAPIKey, cfg.ClaudeModel))
	case config.BackendOllama:
		if cfg.OllamaHost == "" {
			logger.Warn("OLLAMA_HOST is not set; AI analysis is offline")
			return gateway.Unavailable("OLLAMA_HOST is not configured")
		}
		logger.Info("using Ollama model backend", "host", cfg.OllamaHost, "model", cfg.OllamaModel)
		return gateway.Available(ollama.New(cfg.OllamaHost, cfg.OllamaModel))
	default:
		if cfg.GoogleAPIKey == "" {
			logger.Warn("GOOGLE_API_KEY is not set; AI analysis is offline")
			return gateway.Unavailable("GOOGLE_API_KEY is not configured")
		}
		client, err := gemini.New(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to create Gemini client", "error", err)
			return gateway.Unavailable("the Gemini client could not be created")
		}
		logger.Info("using Gemini model backend", "model", cfg.GeminiModel)
		return gateway.Available(client)
	}
}
