package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv     string
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Accounts   AccountsConfig
	Storage    StorageConfig
	LLM        LLMConfig
	Processing ProcessingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AccountsConfig struct {
	Backend  string // "file" or "postgres"
	FilePath string
}

type StorageConfig struct {
	Backend string // "local", "supabase" or "s3"

	// local
	LocalPath     string
	PublicBaseURL string

	// supabase
	SupabaseURL string
	SupabaseKey string
	Bucket      string

	// s3
	S3Bucket    string
	S3Endpoint  string
	S3Region    string
	S3PublicURL string
}

type LLMConfig struct {
	OpenRouterKey     string
	OpenRouterBaseURL string
	OpenRouterReferer string
	OpenRouterTitle   string

	DashScopeKey     string
	DashScopeBaseURL string

	AnthropicKey string

	ModelChain  []string
	CatalogFile string
	// InlineSource sends document bytes as a data URL instead of the blob URL.
	InlineSource bool
}

type ProcessingConfig struct {
	MaxUploadBytes    int64
	StaleAfter        time.Duration
	QueueMode         string // "asynq" or "inline"
	WorkerConcurrency int
	JobTimeout        time.Duration
}

var defaultModelChain = []string{
	"google/gemini-flash-1.5",
	"qwen/qwen-2.5-vl-72b-instruct",
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxUpload, err := getEnvInt("MAX_UPLOAD_BYTES", 4*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	staleAfter, err := getEnvDuration("PROCESSING_STALE_AFTER", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid PROCESSING_STALE_AFTER: %w", err)
	}

	jobTimeout, err := getEnvDuration("PROCESSING_JOB_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid PROCESSING_JOB_TIMEOUT: %w", err)
	}

	storageBackend := getEnv("STORAGE_BACKEND", "local")

	// Local blob URLs point at this server, which hosted models usually
	// cannot reach.
	inline, err := getEnvBool("LLM_INLINE_SOURCE", storageBackend == "local")
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_INLINE_SOURCE: %w", err)
	}

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Accounts: AccountsConfig{
			Backend:  getEnv("ACCOUNTS_BACKEND", "file"),
			FilePath: getEnv("ACCOUNTS_FILE", "data/accounts.json"),
		},
		Storage: StorageConfig{
			Backend:       storageBackend,
			LocalPath:     getEnv("STORAGE_PATH", "storage"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
			SupabaseURL:   getEnv("SUPABASE_URL", ""),
			SupabaseKey:   getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:        getEnv("STORAGE_BUCKET", "documents"),
			S3Bucket:      getEnv("S3_BUCKET", ""),
			S3Endpoint:    getEnv("S3_ENDPOINT", ""),
			S3Region:      getEnv("AWS_REGION", "us-east-1"),
			S3PublicURL:   getEnv("S3_PUBLIC_URL", ""),
		},
		LLM: LLMConfig{
			OpenRouterKey:     getEnv("OPENROUTER_API_KEY", ""),
			OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			OpenRouterReferer: getEnv("OPENROUTER_REFERER", ""),
			OpenRouterTitle:   getEnv("OPENROUTER_TITLE", "Medical Document Portal"),
			DashScopeKey:      getEnv("DASHSCOPE_API_KEY", ""),
			DashScopeBaseURL:  getEnv("DASHSCOPE_BASE_URL", "https://dashscope.aliyuncs.com/api/v1"),
			AnthropicKey:      getEnv("ANTHROPIC_API_KEY", ""),
			ModelChain:        getEnvList("LLM_MODEL_CHAIN", defaultModelChain),
			CatalogFile:       getEnv("LLM_CATALOG_FILE", ""),
			InlineSource:      inline,
		},
		Processing: ProcessingConfig{
			MaxUploadBytes:    int64(maxUpload),
			StaleAfter:        staleAfter,
			QueueMode:         getEnv("QUEUE_MODE", "inline"),
			WorkerConcurrency: concurrency,
			JobTimeout:        jobTimeout,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) Validate() error {
	var missing []string
	if c.Accounts.Backend == "postgres" && c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	switch c.Storage.Backend {
	case "supabase":
		if c.Storage.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.Storage.SupabaseKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_KEY")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
	case "local":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Accounts.Backend != "file" && c.Accounts.Backend != "postgres" {
		return fmt.Errorf("unknown ACCOUNTS_BACKEND %q", c.Accounts.Backend)
	}
	if c.Accounts.Backend == "file" && c.Storage.Backend == "local" {
		inside, err := within(c.Storage.LocalPath, c.Accounts.FilePath)
		if err != nil {
			return err
		}
		if inside {
			return fmt.Errorf("ACCOUNTS_FILE %q must not be inside STORAGE_PATH %q, which is served publicly",
				c.Accounts.FilePath, c.Storage.LocalPath)
		}
	}
	if c.Processing.QueueMode != "inline" && c.Processing.QueueMode != "asynq" {
		return fmt.Errorf("unknown QUEUE_MODE %q", c.Processing.QueueMode)
	}
	if c.LLM.OpenRouterKey == "" && c.LLM.DashScopeKey == "" && c.LLM.AnthropicKey == "" {
		missing = append(missing, "OPENROUTER_API_KEY|DASHSCOPE_API_KEY|ANTHROPIC_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

// within reports whether path lies inside dir.
func within(dir, path string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", dir, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", path, err)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
