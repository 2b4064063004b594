package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/plantspeak/internal/audio"
	"github.com/nikhilbhutani/plantspeak/internal/config"
	"github.com/nikhilbhutani/plantspeak/internal/queue"
)

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

	var worker *queue.AudioWorker
	switch cfg.Audio.Backend {
	case "supabase":
		store := audio.NewSupabaseStore(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket)
		worker = queue.NewAudioWorker(store, nil)
	default:
		store, err := audio.NewLocalStore(cfg.Audio.Dir, cfg.Audio.PublicBaseURL)
		if err != nil {
			slog.Error("failed to open audio dir", "error", err)
			os.Exit(1)
		}
		worker = queue.NewAudioWorker(store, store)
	}

	redisOpt := queue.RedisOpt(cfg.Redis)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			"default": 3,
			"low":     1,
		},
	})

	scheduler := asynq.NewScheduler(redisOpt, nil)
	if cfg.Audio.Backend != "supabase" && cfg.Audio.SweepInterval > 0 {
		task, err := queue.NewAudioSweepTask(cfg.Audio.TTL)
		if err != nil {
			slog.Error("failed to build sweep task", "error", err)
			os.Exit(1)
		}
		if _, err := scheduler.Register("@every "+cfg.Audio.SweepInterval.String(), task, asynq.Queue("low")); err != nil {
			slog.Error("failed to schedule sweep", "error", err)
			os.Exit(1)
		}
	}

	if err := scheduler.Start(); err != nil {
		slog.Error("scheduler error", "error", err)
		os.Exit(1)
	}
	defer scheduler.Shutdown()

	slog.Info("starting worker",
		"concurrency", cfg.Worker.Concurrency,
		"audio_backend", cfg.Audio.Backend,
		"sweep_interval", cfg.Audio.SweepInterval.String(),
	)
	if err := srv.Start(queue.NewMux(worker)); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("shutting down worker...")
	srv.Shutdown()
}
