package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edutalk/api/internal/client"
	"github.com/edutalk/api/internal/config"
	"github.com/edutalk/api/internal/handler"
	"github.com/edutalk/api/internal/server"
	"github.com/edutalk/api/internal/service"
	"github.com/edutalk/api/internal/store"
	ws "github.com/edutalk/api/internal/websocket"
	"github.com/edutalk/api/internal/worker"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	httpShutdownTimeout  = 10 * time.Second
	drainShutdownTimeout = 30 * time.Second
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	for _, dir := range []string{cfg.Storage.PresenterDir, cfg.Storage.AudioDir, cfg.Storage.VideoDir, cfg.Storage.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create storage dir")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is optional unless the redis job backend is selected
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not available")
		}
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	// External collaborators
	runner := client.NewExecRunner()
	llmClient := client.NewLLMClient(&cfg.LLM)
	ttsClient := client.NewEdgeTTSClient(&cfg.TTS, runner)
	lipSyncClient := client.NewLipSyncClient(&cfg.Video, runner)
	faceClient := client.NewFaceClient(&cfg.Face)

	// R2 mirror (optional - videos are always served locally)
	var mirror client.ObjectStore
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Warn().Err(err).Msg("R2 client not initialized")
		} else {
			mirror = r2Client
		}
	} else {
		log.Info().Msg("R2 storage not configured, videos are served locally only")
	}

	var classifier service.FaceClassifier
	if faceClient.IsConfigured() {
		classifier = faceClient
	}

	// Job table and dispatch
	var (
		jobs        store.JobStore
		dispatcher  service.Dispatcher
		pool        *worker.Pool
		asynqClient *asynq.Client
	)
	switch cfg.Jobs.Backend {
	case config.BackendRedis:
		jobs = store.NewRedisStore(redisClient, cfg.Jobs.Retention)
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
		dispatcher = worker.NewAsynqDispatcher(asynqClient, cfg.Jobs)
	default:
		jobs = store.NewMemoryStore(cfg.Jobs.MaxRetained, cfg.Jobs.Retention)
		pool = worker.NewPool(cfg.Jobs.Workers, cfg.Jobs.QueueSize)
		dispatcher = pool
	}

	// Services
	scriptService, err := service.NewScriptService(llmClient, &cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize script service")
	}
	videoService := service.NewVideoService(jobs, dispatcher, cfg.Storage.PresenterDir, cfg.TTS.DefaultVoice)
	uploadService := service.NewUploadService(cfg.Storage.PresenterDir, classifier)
	fileService := service.NewFileService(&cfg.Storage)

	videoWorker := worker.NewVideoWorker(videoService, worker.Stages{
		Script: scriptService,
		Speech: ttsClient,
		Video:  lipSyncClient,
	}, mirror, hub, cfg.Storage, cfg.Jobs)

	// Workers outlive the signal context so queued jobs can drain on shutdown.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var asynqServer *asynq.Server
	if pool != nil {
		pool.Start(workerCtx, videoWorker.Run)
	} else {
		asynqServer = worker.NewAsynqServer(cfg)
		if err := asynqServer.Start(worker.NewAsynqMux(videoWorker)); err != nil {
			log.Fatal().Err(err).Msg("failed to start asynq worker server")
		}
	}

	app := server.NewApp(server.Dependencies{
		Config:  cfg,
		Videos:  videoService,
		Scripts: scriptService,
		Uploads: uploadService,
		Files:   fileService,
		Hub:     hub,
		Redis:   redisClient,
		Checks: map[string]handler.ServiceCheck{
			"llm":     llmClient.IsConfigured,
			"tts":     ttsClient.IsConfigured,
			"video":   lipSyncClient.IsConfigured,
			"face":    faceClient.IsConfigured,
			"storage": func() bool { return mirror != nil },
			"redis":   func() bool { return redisClient != nil },
		},
	})

	go func() {
		addr := ":" + cfg.Server.Port
		log.Info().
			Str("addr", addr).
			Str("env", cfg.Server.Env).
			Str("jobs_backend", cfg.Jobs.Backend).
			Str("video_engine", cfg.Video.Engine).
			Msg("server starting")
		if err := app.Listen(addr); err != nil {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	if err := app.ShutdownWithTimeout(httpShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	if pool != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainShutdownTimeout)
		if err := pool.Stop(drainCtx); err != nil {
			log.Warn().Err(err).Int("pending", pool.Pending()).Msg("workers did not drain in time, aborting running jobs")
		}
		cancel()
	}
	if asynqServer != nil {
		asynqServer.Shutdown()
	}
	cancelWorkers()

	log.Info().Msg("server stopped")
}

func setupLogging(cfg *config.Config) {
	if !cfg.IsDevelopment() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Server.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Debug().Str("level", cfg.Server.LogLevel).Msg("log level configured")
}
