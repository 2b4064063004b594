package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/plantspeak/internal/api"
	"github.com/nikhilbhutani/plantspeak/internal/api/handlers"
	"github.com/nikhilbhutani/plantspeak/internal/audio"
	"github.com/nikhilbhutani/plantspeak/internal/cache"
	"github.com/nikhilbhutani/plantspeak/internal/config"
	"github.com/nikhilbhutani/plantspeak/internal/database"
	"github.com/nikhilbhutani/plantspeak/internal/history"
	"github.com/nikhilbhutani/plantspeak/internal/identify"
	"github.com/nikhilbhutani/plantspeak/internal/imagefetch"
	"github.com/nikhilbhutani/plantspeak/internal/plantnet"
	"github.com/nikhilbhutani/plantspeak/internal/queue"
	"github.com/nikhilbhutani/plantspeak/internal/speech"
	"github.com/nikhilbhutani/plantspeak/internal/tts"
)

type redisPinger struct{ c *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	probes := map[string]handlers.Pinger{}

	// Database (optional: history is disabled without it)
	var recorder identify.Recorder
	var lister handlers.HistoryLister
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without history", "error", err)
		} else {
			defer db.Close()
			if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
				slog.Warn("migrations failed", "error", err)
			}
			hist := history.NewService(db)
			recorder, lister = hist, hist
			probes["database"] = db
		}
	}

	// Redis (optional: caching and audio expiry are disabled without it)
	var resultCache identify.ResultCache
	var expirer speech.Expirer
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without cache", "error", err)
	} else {
		resultCache = cache.NewCache(rdb, "plantspeak:")
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		expirer = qc
		probes["redis"] = redisPinger{rdb}
	}

	identifySvc := identify.NewService(
		identify.Config{
			DefaultAPIKey: cfg.PlantNet.APIKey,
			DefaultLang:   cfg.PlantNet.Lang,
			Project:       cfg.PlantNet.Project,
			AutoThreshold: cfg.PlantNet.AutoThreshold,
			CacheTTL:      cfg.Identify.CacheTTL,
		},
		imagefetch.NewFetcher(imagefetch.Config{
			MaxBytes: cfg.Image.MaxBytes,
			Timeout:  cfg.Image.FetchTimeout,
			Retries:  cfg.Image.FetchRetries,
		}),
		plantnet.NewClient(plantnet.Config{
			BaseURL: cfg.PlantNet.BaseURL,
			Project: cfg.PlantNet.Project,
			Timeout: cfg.PlantNet.Timeout,
		}),
		resultCache,
		recorder,
	)

	store, localStore, err := newAudioStore(cfg)
	if err != nil {
		slog.Error("failed to set up audio store", "error", err)
		os.Exit(1)
	}

	speechSvc := speech.NewService(newTTSProvider(cfg), store, expirer, cfg.TTS.MaxChars, cfg.Audio.TTL)

	router := api.NewRouter(cfg, api.Deps{
		Identify:   identifySvc,
		Speech:     speechSvc,
		History:    lister,
		LocalAudio: localStore,
		Probes:     probes,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(ctx),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server",
			"addr", cfg.Addr(),
			"tts_backend", cfg.TTS.Backend,
			"audio_backend", cfg.Audio.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func newTTSProvider(cfg *config.Config) tts.Provider {
	if cfg.TTS.Backend == "local" {
		return tts.NewLocal(tts.LocalConfig{
			PiperBinPath: cfg.TTS.LocalBinPath,
			ModelPath:    cfg.TTS.LocalModel,
		})
	}
	return tts.NewOpenAI(tts.OpenAIConfig{
		APIKey:       cfg.TTS.OpenAIKey,
		BaseURL:      cfg.TTS.OpenAIBaseURL,
		Model:        cfg.TTS.OpenAIModel,
		DefaultVoice: cfg.TTS.DefaultVoice,
	})
}

// newAudioStore returns the configured store and, for the local backend, the
// same store typed so the router can serve its files.
func newAudioStore(cfg *config.Config) (audio.Store, *audio.LocalStore, error) {
	if cfg.Audio.Backend == "supabase" {
		return audio.NewSupabaseStore(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket), nil, nil
	}
	local, err := audio.NewLocalStore(cfg.Audio.Dir, cfg.Audio.PublicBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return local, local, nil
}
