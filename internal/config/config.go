package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/FadeevMax/test-web-sop/internal/chunker"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Chunk sizing, in characters
	TargetChunkSize int    `yaml:"target_chunk_size"`
	MaxChunkSize    int    `yaml:"max_chunk_size"`
	OverlapSize     int    `yaml:"overlap_size"`
	MinChunkSize    int    `yaml:"min_chunk_size"`
	ImageDir        string `yaml:"image_dir"`

	// Output
	ChunksFile   string `yaml:"chunks_file"`
	OutputDir    string `yaml:"output_dir"`
	OutputFormat string `yaml:"output_format"`

	// GitHub content store
	GitHubToken      string `yaml:"github_token"`
	GitHubRepo       string `yaml:"github_repo"`
	GitHubBranch     string `yaml:"github_branch"`
	GitHubPathPrefix string `yaml:"github_path_prefix"`
	GitHubAPIURL     string `yaml:"github_api_url"`

	// Google Drive source
	GoogleAccessToken string        `yaml:"google_access_token"`
	GoogleDocID       string        `yaml:"google_doc_id"`
	DriveAPIURL       string        `yaml:"drive_api_url"`
	SyncInterval      time.Duration `yaml:"sync_interval"`

	// S3 sink
	S3Bucket    string `yaml:"s3_bucket"`
	S3Prefix    string `yaml:"s3_prefix"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`

	// Postgres sink
	DatabaseURL string `yaml:"database_url"`

	// Notifications
	RedisURL     string `yaml:"redis_url"`
	RedisChannel string `yaml:"redis_channel"`
	WebhookURL   string `yaml:"webhook_url"`

	// Worker pool
	WorkerCount        int `yaml:"worker_count"`
	MaxQueueSize       int `yaml:"max_queue_size"`
	MaxConcurrentStore int `yaml:"max_concurrent_store"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Extra topic keywords for the context tagger, code -> keywords.
	Topics map[string][]string `yaml:"topics"`
}

func defaults() Config {
	return Config{
		Port: "8090",

		TargetChunkSize: 800,
		MaxChunkSize:    1200,
		OverlapSize:     150,
		MinChunkSize:    300,
		ImageDir:        "images",

		ChunksFile:   "semantic_chunks.json",
		OutputFormat: "json",

		GitHubBranch: "main",

		WorkerCount:        2,
		MaxQueueSize:       50,
		MaxConcurrentStore: 4,

		MaxUploadBytes: 52428800, // 50MB

		JobTTL: 1 * time.Hour,

		PDFFallbackPdftotext: true,

		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads configuration from the environment over defaults.
func Load() Config {
	cfg := defaults()
	applyEnv(&cfg)
	cfg.clamp()
	return cfg
}

// LoadFile reads a YAML file over defaults, expanding ${VAR} and
// ${VAR:-default} references, then applies environment overrides.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config file not found: %s", path)
		}
		return Config{}, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	applyEnv(&cfg)
	cfg.clamp()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("SOP_API_KEY", cfg.APIKey)

	cfg.TargetChunkSize = envInt("TARGET_CHUNK_SIZE", cfg.TargetChunkSize)
	cfg.MaxChunkSize = envInt("MAX_CHUNK_SIZE", cfg.MaxChunkSize)
	cfg.OverlapSize = envInt("OVERLAP_SIZE", cfg.OverlapSize)
	cfg.MinChunkSize = envInt("MIN_CHUNK_SIZE", cfg.MinChunkSize)
	cfg.ImageDir = envOr("IMAGE_DIR", cfg.ImageDir)

	cfg.ChunksFile = envOr("CHUNKS_FILE", cfg.ChunksFile)
	cfg.OutputDir = envOr("OUTPUT_DIR", cfg.OutputDir)
	cfg.OutputFormat = envOr("OUTPUT_FORMAT", cfg.OutputFormat)

	cfg.GitHubToken = envOr("GITHUB_TOKEN", cfg.GitHubToken)
	cfg.GitHubRepo = envOr("GITHUB_REPO", cfg.GitHubRepo)
	cfg.GitHubBranch = envOr("GITHUB_BRANCH", cfg.GitHubBranch)
	cfg.GitHubPathPrefix = envOr("GITHUB_PATH_PREFIX", cfg.GitHubPathPrefix)
	cfg.GitHubAPIURL = envOr("GITHUB_API_URL", cfg.GitHubAPIURL)

	cfg.GoogleAccessToken = envOr("GOOGLE_ACCESS_TOKEN", cfg.GoogleAccessToken)
	cfg.GoogleDocID = envOr("GOOGLE_DOC_ID", cfg.GoogleDocID)
	cfg.DriveAPIURL = envOr("DRIVE_API_URL", cfg.DriveAPIURL)
	cfg.SyncInterval = envDuration("SYNC_INTERVAL", cfg.SyncInterval)

	cfg.S3Bucket = envOr("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = envOr("S3_PREFIX", cfg.S3Prefix)
	cfg.S3Region = envOr("S3_REGION", cfg.S3Region)
	cfg.S3Endpoint = envOr("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3PathStyle = envBool("S3_PATH_STYLE", cfg.S3PathStyle)

	cfg.DatabaseURL = envOr("DATABASE_URL", cfg.DatabaseURL)

	cfg.RedisURL = envOr("REDIS_URL", cfg.RedisURL)
	cfg.RedisChannel = envOr("REDIS_CHANNEL", cfg.RedisChannel)
	cfg.WebhookURL = envOr("WEBHOOK_URL", cfg.WebhookURL)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxConcurrentStore = envInt("MAX_CONCURRENT_STORE", cfg.MaxConcurrentStore)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
}

// clamp resets non-positive pool and limit values to defaults. Chunk sizes
// are left alone so Validate can report them.
func (c *Config) clamp() {
	d := defaults()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxConcurrentStore <= 0 {
		c.MaxConcurrentStore = d.MaxConcurrentStore
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
	if c.SyncInterval < 0 {
		c.SyncInterval = 0
	}
	if c.ChunksFile == "" {
		c.ChunksFile = d.ChunksFile
	}
	if c.ImageDir == "" {
		c.ImageDir = d.ImageDir
	}
}

// Chunker returns the chunk builder configuration.
func (c Config) Chunker() chunker.Config {
	return chunker.Config{
		TargetChunkSize: c.TargetChunkSize,
		MaxChunkSize:    c.MaxChunkSize,
		OverlapSize:     c.OverlapSize,
		MinChunkSize:    c.MinChunkSize,
		ImageDir:        c.ImageDir,
	}
}

var repoPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

func (c Config) Validate() error {
	if c.OverlapSize <= 0 || c.MinChunkSize <= 0 || c.TargetChunkSize <= 0 || c.MaxChunkSize <= 0 {
		return fmt.Errorf("chunk sizes must be positive")
	}
	if err := c.Chunker().Validate(); err != nil {
		return err
	}
	switch c.OutputFormat {
	case "json", "msgpack":
	default:
		return fmt.Errorf("OUTPUT_FORMAT must be json or msgpack, got %q", c.OutputFormat)
	}
	if c.GitHubRepo != "" && !repoPattern.MatchString(c.GitHubRepo) {
		return fmt.Errorf("GITHUB_REPO must be owner/repo, got %q", c.GitHubRepo)
	}
	if c.GitHubRepo != "" && c.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN is required when GITHUB_REPO is set")
	}
	if c.S3Bucket == "" && (c.S3Prefix != "" || c.S3Endpoint != "") {
		return fmt.Errorf("S3_BUCKET is required when S3 options are set")
	}
	if c.SyncInterval > 0 && (c.GoogleDocID == "" || c.GoogleAccessToken == "") {
		return fmt.Errorf("SYNC_INTERVAL requires GOOGLE_DOC_ID and GOOGLE_ACCESS_TOKEN")
	}
	for code, kws := range c.Topics {
		if strings.TrimSpace(code) == "" || len(kws) == 0 {
			return fmt.Errorf("topic %q needs at least one keyword", code)
		}
	}
	return nil
}

// RequireAPIKey is checked by the server only; the CLI runs without one.
func (c Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("SOP_API_KEY is required")
	}
	return nil
}

// GitHubEnabled reports whether the GitHub sink and document listing are configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubRepo != "" && c.GitHubToken != ""
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} with environment values.
// Unset variables without a default expand to the empty string.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(groups[1]); ok && v != "" {
			return v
		}
		return groups[2]
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
