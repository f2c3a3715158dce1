package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a configuration value is out of range or unknown.
var ErrInvalid = errors.New("invalid configuration")

const (
	EmbeddingLocal  = "local"
	EmbeddingHosted = "hosted"
	EmbeddingMock   = "mock"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"

	DedupAppend = "append"
	DedupHash   = "hash"

	DriverPG = "pgdriver"
	DriverPQ = "pq"
)

type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	RAG       RAGConfig       `yaml:"rag"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Mock      MockConfig      `yaml:"mock"`
	Database  DatabaseConfig  `yaml:"database"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type StorageConfig struct {
	DataDir       string `yaml:"data_dir"`
	VectorDBDir   string `yaml:"vector_db_dir"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type RAGConfig struct {
	ChunkSize    int     `yaml:"chunk_size"`
	ChunkOverlap int     `yaml:"chunk_overlap"`
	TopK         int     `yaml:"top_k"`
	MaxDistance  float64 `yaml:"max_distance"`
	Dedup        string  `yaml:"dedup"`
	ExtraFormats bool    `yaml:"extra_formats"`
}

type EmbeddingConfig struct {
	Mode      string `yaml:"mode"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	Key       string `yaml:"key"`
	Dimension int    `yaml:"dimension"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Temperature float64 `yaml:"temperature"`
}

type MockConfig struct {
	Embeddings bool  `yaml:"embeddings"`
	LLM        bool  `yaml:"llm"`
	Retrieval  *bool `yaml:"retrieval,omitempty"`
}

type DatabaseConfig struct {
	URL    string `yaml:"url"`
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

// MockRetrieval reports whether retrieval should skip distance filtering.
// It follows the embeddings mock flag unless set explicitly.
func (m MockConfig) MockRetrieval() bool {
	if m.Retrieval != nil {
		return *m.Retrieval
	}
	return m.Embeddings
}

// Default returns the configuration used when neither a file nor the
// environment sets a value.
func Default() *Config {
	return &Config{
		LogLevel: "debug",
		Server:   ServerConfig{Port: "8000"},
		Storage: StorageConfig{
			DataDir:     "./data",
			VectorDBDir: "./chroma_db",
			Collection:  "rag_documents",
		},
		RAG: RAGConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
			TopK:         5,
			MaxDistance:  1.0,
			Dedup:        DedupAppend,
		},
		Embedding: EmbeddingConfig{
			Mode:      EmbeddingLocal,
			Model:     "all-minilm",
			BaseURL:   "http://localhost:11434",
			Dimension: 1536,
		},
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Model:    "gemini-2.5-flash",
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta/openai",
		},
		Database: DatabaseConfig{Driver: DriverPG},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults. A missing
// file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("path", path).Msg("Config file not found, using defaults")
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the process configuration: defaults, then the YAML file, then
// .env, then the process environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with values found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	var errs []error
	integer := func(dst *int, key string) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalid, key, v))
				return
			}
			*dst = n
		}
	}
	float := func(dst *float64, key string) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalid, key, v))
				return
			}
			*dst = f
		}
	}
	boolean := func(dst *bool, key string) bool {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalid, key, v))
				return false
			}
			*dst = b
			return true
		}
		return false
	}

	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.Server.Port, "PORT")

	str(&cfg.Storage.DataDir, "DATA_DIR")
	str(&cfg.Storage.VectorDBDir, "VECTOR_DB_DIR", "CHROMA_DB_DIR")
	str(&cfg.Storage.Collection, "COLLECTION_NAME")
	boolean(&cfg.Storage.Compress, "VECTOR_DB_COMPRESS")
	str(&cfg.Storage.EncryptionKey, "ENCRYPTION_KEY")

	integer(&cfg.RAG.ChunkSize, "CHUNK_SIZE")
	integer(&cfg.RAG.ChunkOverlap, "CHUNK_OVERLAP")
	integer(&cfg.RAG.TopK, "RETRIEVAL_TOP_K")
	float(&cfg.RAG.MaxDistance, "MAX_DISTANCE")
	str(&cfg.RAG.Dedup, "INGEST_DEDUP")
	boolean(&cfg.RAG.ExtraFormats, "LOADER_EXTRA_FORMATS")

	str(&cfg.Embedding.Mode, "EMBEDDING_MODE")
	str(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	str(&cfg.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	str(&cfg.Embedding.Key, "EMBEDDING_API_KEY")
	integer(&cfg.Embedding.Dimension, "EMBEDDING_DIMENSION")

	str(&cfg.LLM.Provider, "LLM_PROVIDER")
	str(&cfg.LLM.Model, "LLM_MODEL")
	str(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	str(&cfg.LLM.Key, "LLM_API_KEY", "GEM_API")
	float(&cfg.LLM.Temperature, "LLM_TEMPERATURE")

	boolean(&cfg.Mock.Embeddings, "USE_MOCK")
	boolean(&cfg.Mock.LLM, "USE_MOCK_LLM")
	var retrieval bool
	if boolean(&retrieval, "USE_MOCK_RETRIEVAL") {
		cfg.Mock.Retrieval = &retrieval
	}

	str(&cfg.Database.URL, "DATABASE_URL")
	str(&cfg.Database.Driver, "DATABASE_DRIVER")
	boolean(&cfg.Database.Debug, "DATABASE_DEBUG")

	if cfg.Mock.Embeddings {
		cfg.Embedding.Mode = EmbeddingMock
	}
	if cfg.Mock.Embeddings || cfg.Mock.LLM {
		cfg.LLM.Provider = ProviderMock
	}
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	switch {
	case c.RAG.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalid, c.RAG.ChunkSize)
	case c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize:
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalid, c.RAG.ChunkOverlap)
	case c.RAG.TopK <= 0:
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalid, c.RAG.TopK)
	case c.RAG.MaxDistance < 0:
		return fmt.Errorf("%w: max_distance must not be negative, got %g", ErrInvalid, c.RAG.MaxDistance)
	case c.Storage.Collection == "":
		return fmt.Errorf("%w: collection name is required", ErrInvalid)
	}
	if !oneOf(c.RAG.Dedup, DedupAppend, DedupHash) {
		return fmt.Errorf("%w: unknown dedup policy %q", ErrInvalid, c.RAG.Dedup)
	}
	if !oneOf(c.Embedding.Mode, EmbeddingLocal, EmbeddingHosted, EmbeddingMock) {
		return fmt.Errorf("%w: unknown embedding mode %q", ErrInvalid, c.Embedding.Mode)
	}
	if c.Embedding.Mode == EmbeddingMock && c.Embedding.Dimension <= 0 {
		return fmt.Errorf("%w: mock embedding dimension must be positive", ErrInvalid)
	}
	if !oneOf(c.LLM.Provider, ProviderOpenAI, ProviderOllama, ProviderMock) {
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalid, c.LLM.Provider)
	}
	if !oneOf(c.Database.Driver, DriverPG, DriverPQ) {
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalid, c.Database.Driver)
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
