package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cryptosight-backend/internal/bot"
	"cryptosight-backend/internal/config"
	"cryptosight-backend/internal/db"
	"cryptosight-backend/internal/market"
	"cryptosight-backend/internal/server"
	"cryptosight-backend/internal/store"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transcripts, cleanup, err := openTranscripts(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open transcript store")
	}
	defer cleanup()

	binance := market.NewBinanceClient(cfg.BinanceBaseURL, cfg.USDToINR)
	predictor := market.NewTrendPredictor(binance, log.Logger)

	var classifier bot.IntentClassifier
	if cfg.OpenAIAPIKey != "" {
		llm, err := bot.LoadIntentClassifier(cfg.IntentSpecPath, bot.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), cfg.OpenAIModel)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.IntentSpecPath).Msg("intent classifier disabled")
		} else {
			classifier = llm
		}
	}

	engine := bot.NewEngine(binance, predictor, classifier, log.Logger)
	s := server.NewServer(cfg, engine, transcripts, log.Logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("CryptoSight server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server shut down")
}

// openTranscripts picks the first configured backend: Postgres, Redis, a
// directory of JSON files, then memory.
func openTranscripts(ctx context.Context, cfg config.Config) (store.TranscriptStore, func(), error) {
	logger := log.With().Str("component", "store").Logger()
	switch {
	case cfg.DatabaseURL != "":
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		schema := db.Migrations()
		if cfg.MigrationsDir != "" {
			schema = os.DirFS(cfg.MigrationsDir)
		}
		if err := database.RunMigrations(ctx, schema); err != nil {
			database.Close()
			return nil, nil, err
		}
		logger.Info().Msg("using postgres transcript store")
		return store.NewDatabaseStore(database, cfg.HistoryMaxMessages), func() { database.Close() }, nil

	case cfg.RedisURL != "":
		client, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("using redis transcript store")
		return store.NewRedisStore(client, cfg.HistoryMaxMessages), func() { _ = client.Close() }, nil

	case cfg.HistoryDir != "":
		fs, err := store.NewFileStore(cfg.HistoryDir, cfg.HistoryMaxMessages)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("dir", cfg.HistoryDir).Msg("using file transcript store")
		return fs, func() {}, nil
	}
	logger.Info().Msg("using in-memory transcript store")
	return store.NewMemoryStore(cfg.HistoryMaxMessages), func() {}, nil
}
