package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	LLM       LLMConfig
	TTS       TTSConfig
	Video     VideoConfig
	Face      FaceConfig
	Storage   StorageConfig
	Jobs      JobsConfig
	R2        R2Config
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	BodyLimitMB int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
}

type RateLimitConfig struct {
	GeneratePerHour int
	UploadPerHour   int
	ScriptPerMin    int
}

type LLMConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxTokens       int
	Temperature     float64
	PromptFile      string
	Audience        string
	DurationSeconds int
}

type TTSConfig struct {
	Binary       string
	DefaultVoice string
}

// Video engines understood by the lip-sync client.
const (
	EngineWav2Lip   = "wav2lip"
	EngineSadTalker = "sadtalker"
)

type VideoConfig struct {
	Engine     string
	Python     string
	RepoPath   string
	Checkpoint string // relative to RepoPath
}

type FaceConfig struct {
	ServiceURL string
	Timeout    time.Duration
}

type StorageConfig struct {
	PresenterDir string
	AudioDir     string
	VideoDir     string
	WorkDir      string
}

// Job dispatch backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type JobsConfig struct {
	Backend        string
	Workers        int
	QueueSize      int
	MaxRetained    int
	Retention      time.Duration
	ScriptTimeout  time.Duration
	SpeechTimeout  time.Duration
	VideoTimeout   time.Duration
	MinScriptChars int
	MinAudioBytes  int64
}

// TaskTimeout bounds a whole pipeline run: the sum of the stage deadlines plus slack
// for file moves and uploads.
func (j JobsConfig) TaskTimeout() time.Duration {
	return j.ScriptTimeout + j.SpeechTimeout + j.VideoTimeout + time.Minute
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("LLM_API_KEY")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	bindings := map[string]string{
		"server.port":                 "SERVER_PORT",
		"server.env":                  "SERVER_ENV",
		"server.log_level":            "LOG_LEVEL",
		"server.body_limit_mb":        "SERVER_BODY_LIMIT_MB",
		"redis.enabled":               "REDIS_ENABLED",
		"redis.addr":                  "REDIS_ADDR",
		"redis.password":              "REDIS_PASSWORD",
		"redis.db":                    "REDIS_DB",
		"auth.enabled":                "AUTH_ENABLED",
		"auth.jwt_secret":             "JWT_SECRET",
		"ratelimit.generate_per_hour": "RATELIMIT_GENERATE_PER_HOUR",
		"ratelimit.upload_per_hour":   "RATELIMIT_UPLOAD_PER_HOUR",
		"ratelimit.script_per_min":    "RATELIMIT_SCRIPT_PER_MIN",
		"llm.api_key":                 "LLM_API_KEY",
		"llm.base_url":                "LLM_BASE_URL",
		"llm.model":                   "LLM_MODEL",
		"llm.max_tokens":              "LLM_MAX_TOKENS",
		"llm.temperature":             "LLM_TEMPERATURE",
		"llm.prompt_file":             "LLM_PROMPT_FILE",
		"llm.audience":                "LLM_AUDIENCE",
		"llm.duration_seconds":        "LLM_DURATION_SECONDS",
		"tts.binary":                  "TTS_BINARY",
		"tts.default_voice":           "TTS_DEFAULT_VOICE",
		"video.engine":                "VIDEO_ENGINE",
		"video.python":                "VIDEO_PYTHON",
		"video.repo_path":             "VIDEO_REPO_PATH",
		"video.checkpoint":            "VIDEO_CHECKPOINT",
		"face.service_url":            "FACE_SERVICE_URL",
		"face.timeout":                "FACE_SERVICE_TIMEOUT",
		"storage.presenter_dir":       "STORAGE_PRESENTER_DIR",
		"storage.audio_dir":           "STORAGE_AUDIO_DIR",
		"storage.video_dir":           "STORAGE_VIDEO_DIR",
		"storage.work_dir":            "STORAGE_WORK_DIR",
		"jobs.backend":                "JOBS_BACKEND",
		"jobs.workers":                "JOBS_WORKERS",
		"jobs.queue_size":             "JOBS_QUEUE_SIZE",
		"jobs.max_retained":           "JOBS_MAX_RETAINED",
		"jobs.retention":              "JOBS_RETENTION",
		"jobs.script_timeout":         "JOBS_SCRIPT_TIMEOUT",
		"jobs.speech_timeout":         "JOBS_SPEECH_TIMEOUT",
		"jobs.video_timeout":          "JOBS_VIDEO_TIMEOUT",
		"jobs.min_script_chars":       "JOBS_MIN_SCRIPT_CHARS",
		"jobs.min_audio_bytes":        "JOBS_MIN_AUDIO_BYTES",
		"r2.account_id":               "R2_ACCOUNT_ID",
		"r2.access_key_id":            "R2_ACCESS_KEY_ID",
		"r2.secret_access_key":        "R2_SECRET_ACCESS_KEY",
		"r2.bucket_name":              "R2_BUCKET_NAME",
		"r2.public_url":               "R2_PUBLIC_URL",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	setDefaults(v)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Env:         v.GetString("server.env"),
			LogLevel:    v.GetString("server.log_level"),
			BodyLimitMB: v.GetInt("server.body_limit_mb"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			Enabled:   v.GetBool("auth.enabled"),
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: v.GetInt("ratelimit.generate_per_hour"),
			UploadPerHour:   v.GetInt("ratelimit.upload_per_hour"),
			ScriptPerMin:    v.GetInt("ratelimit.script_per_min"),
		},
		LLM: LLMConfig{
			APIKey:          v.GetString("llm.api_key"),
			BaseURL:         v.GetString("llm.base_url"),
			Model:           v.GetString("llm.model"),
			MaxTokens:       v.GetInt("llm.max_tokens"),
			Temperature:     v.GetFloat64("llm.temperature"),
			PromptFile:      v.GetString("llm.prompt_file"),
			Audience:        v.GetString("llm.audience"),
			DurationSeconds: v.GetInt("llm.duration_seconds"),
		},
		TTS: TTSConfig{
			Binary:       v.GetString("tts.binary"),
			DefaultVoice: v.GetString("tts.default_voice"),
		},
		Video: VideoConfig{
			Engine:     strings.ToLower(v.GetString("video.engine")),
			Python:     v.GetString("video.python"),
			RepoPath:   v.GetString("video.repo_path"),
			Checkpoint: v.GetString("video.checkpoint"),
		},
		Face: FaceConfig{
			ServiceURL: v.GetString("face.service_url"),
			Timeout:    v.GetDuration("face.timeout"),
		},
		Storage: StorageConfig{
			PresenterDir: v.GetString("storage.presenter_dir"),
			AudioDir:     v.GetString("storage.audio_dir"),
			VideoDir:     v.GetString("storage.video_dir"),
			WorkDir:      v.GetString("storage.work_dir"),
		},
		Jobs: JobsConfig{
			Backend:        strings.ToLower(v.GetString("jobs.backend")),
			Workers:        v.GetInt("jobs.workers"),
			QueueSize:      v.GetInt("jobs.queue_size"),
			MaxRetained:    v.GetInt("jobs.max_retained"),
			Retention:      v.GetDuration("jobs.retention"),
			ScriptTimeout:  v.GetDuration("jobs.script_timeout"),
			SpeechTimeout:  v.GetDuration("jobs.speech_timeout"),
			VideoTimeout:   v.GetDuration("jobs.video_timeout"),
			MinScriptChars: v.GetInt("jobs.min_script_chars"),
			MinAudioBytes:  v.GetInt64("jobs.min_audio_bytes"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.body_limit_mb", 20)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.enabled", false)

	v.SetDefault("ratelimit.generate_per_hour", 20)
	v.SetDefault("ratelimit.upload_per_hour", 50)
	v.SetDefault("ratelimit.script_per_min", 30)

	// Hugging Face router speaks the OpenAI chat completions dialect
	v.SetDefault("llm.base_url", "https://router.huggingface.co/v1")
	v.SetDefault("llm.model", "meta-llama/Meta-Llama-3-8B-Instruct")
	v.SetDefault("llm.max_tokens", 400)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.audience", "high school")
	v.SetDefault("llm.duration_seconds", 50)

	v.SetDefault("tts.binary", "edge-tts")
	v.SetDefault("tts.default_voice", "jenny")

	v.SetDefault("video.engine", EngineWav2Lip)
	v.SetDefault("video.python", "python3")
	v.SetDefault("video.repo_path", "Wav2Lip")
	v.SetDefault("video.checkpoint", "checkpoints/wav2lip.pth")

	v.SetDefault("face.timeout", 10*time.Second)

	v.SetDefault("storage.presenter_dir", "static/presenters")
	v.SetDefault("storage.audio_dir", "outputs")
	v.SetDefault("storage.video_dir", "videos")
	v.SetDefault("storage.work_dir", "tmp")

	v.SetDefault("jobs.backend", BackendMemory)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_size", 32)
	v.SetDefault("jobs.max_retained", 500)
	v.SetDefault("jobs.retention", 24*time.Hour)
	v.SetDefault("jobs.script_timeout", 90*time.Second)
	v.SetDefault("jobs.speech_timeout", 2*time.Minute)
	v.SetDefault("jobs.video_timeout", 15*time.Minute)
	v.SetDefault("jobs.min_script_chars", 50)
	v.SetDefault("jobs.min_audio_bytes", 1024)
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Jobs.Workers < 1 {
		errs = append(errs, fmt.Errorf("jobs.workers must be at least 1, got %d", c.Jobs.Workers))
	}
	if c.Jobs.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("jobs.queue_size must be at least 1, got %d", c.Jobs.QueueSize))
	}
	if c.Jobs.MaxRetained < 1 {
		errs = append(errs, fmt.Errorf("jobs.max_retained must be at least 1, got %d", c.Jobs.MaxRetained))
	}
	if c.Jobs.ScriptTimeout <= 0 || c.Jobs.SpeechTimeout <= 0 || c.Jobs.VideoTimeout <= 0 {
		errs = append(errs, errors.New("jobs stage timeouts must be positive"))
	}

	switch c.Jobs.Backend {
	case BackendMemory:
	case BackendRedis:
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("jobs.backend=redis requires redis.enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown jobs.backend %q", c.Jobs.Backend))
	}

	switch c.Video.Engine {
	case EngineWav2Lip, EngineSadTalker:
	default:
		errs = append(errs, fmt.Errorf("unknown video.engine %q", c.Video.Engine))
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.enabled requires auth.jwt_secret"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Env, "development")
}
