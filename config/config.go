package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port           string   `yaml:"port"`
	DBPath         string   `yaml:"db_path"`
	VectorDir      string   `yaml:"vector_dir"`
	DocsBaseURL    string   `yaml:"docs_base_url"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"`
	APITokens      []string `yaml:"api_tokens"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`

	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	KB        KBConfig        `yaml:"kb"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type EmbeddingConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"api_key"`
	RateLimit float64       `yaml:"rate_limit"`
	BatchSize int           `yaml:"batch_size"`
	Workers   int           `yaml:"workers"`
	LocalDim  int           `yaml:"local_dim"`
	Timeout   time.Duration `yaml:"timeout"`
	RedisAddr string        `yaml:"redis_addr"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type SearchConfig struct {
	// Mode is "local" (default) or "remote", the legacy forwarding mode.
	Mode        string `yaml:"mode"`
	UpstreamURL string `yaml:"upstream_url"`
}

// KBConfig bounds URL ingestion.
type KBConfig struct {
	AllowedDomains  []string `yaml:"allowed_domains"`
	MaxBytesPerPage int      `yaml:"max_bytes_per_page"`
}

func Defaults() AppConfig {
	return AppConfig{
		Port:           "8000",
		DBPath:         "collections.db",
		VectorDir:      ".vectors",
		DocsBaseURL:    "https://rag.straive.app/docs",
		LogLevel:       "info",
		LogFormat:      "json",
		MaxUploadBytes: 32 << 20,
		Chunking:       ChunkingConfig{Size: 1500, Overlap: 20},
		Embedding: EmbeddingConfig{
			BatchSize: 64,
			Workers:   4,
			LocalDim:  256,
			Timeout:   20 * time.Second,
			CacheTTL:  24 * time.Hour,
		},
		Search: SearchConfig{Mode: "local"},
		KB:     KBConfig{MaxBytesPerPage: 1500000},
	}
}

// Load resolves configuration from defaults, the optional YAML file named by
// CONFIG_FILE (or ./config.yaml), then the environment. A .env file is loaded
// into the environment first when present.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	path := os.Getenv("CONFIG_FILE")
	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}
	if err := mergeFile(&cfg, path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func mergeFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	str := func(k string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			*dst = v
		}
	}
	list := func(k string, dst *[]string) {
		if v := os.Getenv(k); v != "" {
			*dst = splitList(v)
		}
	}

	var errs []error
	integer := func(k string, dst *int) {
		if v := os.Getenv(k); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", k, err))
				return
			}
			*dst = n
		}
	}
	dur := func(k string, dst *time.Duration) {
		if v := os.Getenv(k); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", k, err))
				return
			}
			*dst = d
		}
	}

	str("PORT", &cfg.Port)
	str("DB_PATH", &cfg.DBPath)
	str("VECTOR_DIR", &cfg.VectorDir)
	str("DOCS_BASE_URL", &cfg.DocsBaseURL)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	list("API_TOKENS", &cfg.APITokens)
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err))
		} else {
			cfg.MaxUploadBytes = n
		}
	}

	integer("CHUNK_SIZE", &cfg.Chunking.Size)
	integer("CHUNK_OVERLAP", &cfg.Chunking.Overlap)

	str("EMB_ENDPOINT", &cfg.Embedding.Endpoint)
	str("EMB_API_KEY", &cfg.Embedding.APIKey)
	if v := os.Getenv("EMB_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("EMB_RATE_LIMIT: %w", err))
		} else {
			cfg.Embedding.RateLimit = f
		}
	}
	integer("EMB_BATCH_SIZE", &cfg.Embedding.BatchSize)
	integer("EMB_WORKERS", &cfg.Embedding.Workers)
	integer("EMB_LOCAL_DIM", &cfg.Embedding.LocalDim)
	dur("EMB_TIMEOUT", &cfg.Embedding.Timeout)
	str("REDIS_ADDR", &cfg.Embedding.RedisAddr)
	dur("EMB_CACHE_TTL", &cfg.Embedding.CacheTTL)

	str("SEARCH_MODE", &cfg.Search.Mode)
	str("SEARCH_UPSTREAM_URL", &cfg.Search.UpstreamURL)

	list("KB_ALLOWED_DOMAINS", &cfg.KB.AllowedDomains)
	integer("KB_MAX_BYTES_PER_PAGE", &cfg.KB.MaxBytesPerPage)

	return errors.Join(errs...)
}

// Validate rejects settings the service cannot run with.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.VectorDir == "" {
		errs = append(errs, errors.New("vector_dir is required"))
	}
	if c.Chunking.Size <= 0 {
		errs = append(errs, errors.New("chunking.size must be positive"))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, errors.New("chunking.overlap must be in [0, size)"))
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.Workers <= 0 || c.Embedding.LocalDim <= 0 {
		errs = append(errs, errors.New("embedding batch_size, workers and local_dim must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}
	switch c.Search.Mode {
	case "local":
	case "remote":
		if c.Search.UpstreamURL == "" {
			errs = append(errs, errors.New("search.upstream_url is required in remote mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown search mode %q", c.Search.Mode))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
