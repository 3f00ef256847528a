package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	RAG       RAGConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig
	Upload    UploadConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type StorageConfig struct {
	Dir string
}

// UploadsDir holds one stored file per document, keyed by document id.
func (s StorageConfig) UploadsDir() string {
	return filepath.Join(s.Dir, "uploads")
}

// VectorStoreDir holds the index blob and the document catalog side-table.
func (s StorageConfig) VectorStoreDir() string {
	return filepath.Join(s.Dir, "vector_store")
}

// ConversationsDir holds one JSON file per conversation, keyed by conversation id.
func (s StorageConfig) ConversationsDir() string {
	return filepath.Join(s.Dir, "conversations")
}

type RAGConfig struct {
	ChunkSize     int
	ChunkOverlap  int
	RetrievalK    int
	MaxK          int
	PreviewLength int
}

type EmbeddingConfig struct {
	Provider string // "openai" or "local"
	Model    string
	APIKey   string
	Dim      int // local provider only
}

type LLMConfig struct {
	Enabled     bool
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
}

type UploadConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
}

type RedisConfig struct {
	Enabled    bool
	Host       string
	Port       int
	Password   string
	DB         int
	TTLSeconds int
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/docqa")

	viper.SetEnvPrefix("DOCQA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.RAG.ChunkOverlap >= config.RAG.ChunkSize {
		return nil, fmt.Errorf("rag.chunkOverlap (%d) must be smaller than rag.chunkSize (%d)",
			config.RAG.ChunkOverlap, config.RAG.ChunkSize)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 12582912)

	viper.SetDefault("storage.dir", "./storage")

	viper.SetDefault("rag.chunkSize", 500)
	viper.SetDefault("rag.chunkOverlap", 50)
	viper.SetDefault("rag.retrievalK", 5)
	viper.SetDefault("rag.maxK", 20)
	viper.SetDefault("rag.previewLength", 200)

	viper.SetDefault("embedding.provider", "local")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dim", 384)

	viper.SetDefault("llm.enabled", false)
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 2048)

	viper.SetDefault("upload.maxFileSize", 10*1024*1024)
	viper.SetDefault("upload.allowedExtensions", []string{".txt", ".md", ".pdf", ".docx", ".html", ".htm"})

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSeconds", 86400)

	viper.SetDefault("ratelimit.maxRequestsPerMinute", 120)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
