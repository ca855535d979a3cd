package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	OrderAPI    OrderAPIConfig            `json:"order_api"`
	Retrieval   RetrievalConfig           `json:"retrieval"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// AnswerProvider selects the Providers entry used to phrase
	// knowledge-branch answers.
	AnswerProvider string `json:"answer_provider"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	// PendingTTLMinutes bounds how long an unfinished pending action
	// survives between turns.
	PendingTTLMinutes int `json:"pending_ttl_minutes"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type OrderAPIConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type RetrievalConfig struct {
	Collection       string  `json:"collection"`
	TopK             int     `json:"top_k"`
	MinScore         float64 `json:"min_score"`
	EmbeddingModel   string  `json:"embedding_model"`
	EmbeddingAPIKey  string  `json:"embedding_api_key"`
	EmbeddingBaseURL string  `json:"embedding_base_url"`
	ChunkSize        int     `json:"chunk_size"`
	ChunkOverlap     int     `json:"chunk_overlap"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}
	if cfg.OrderAPI.BaseURL == "" {
		return nil, fmt.Errorf("order_api.base_url must be configured")
	}

	if sqlite, ok := cfg.Databases["sqlite3"]; ok && sqlite.DSN != "" &&
		sqlite.DSN != ":memory:" && !filepath.IsAbs(sqlite.DSN) {
		sqlite.DSN = filepath.Join(filepath.Dir(absPath), sqlite.DSN)
		cfg.Databases["sqlite3"] = sqlite
	}

	if cfg.Retrieval.Collection == "" {
		cfg.Retrieval.Collection = "chatbot_docs"
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Retrieval.ChunkSize <= 0 {
		cfg.Retrieval.ChunkSize = 800
	}
	if cfg.Retrieval.ChunkOverlap <= 0 {
		cfg.Retrieval.ChunkOverlap = 100
	}
	if cfg.OrderAPI.TimeoutSeconds <= 0 {
		cfg.OrderAPI.TimeoutSeconds = 8
	}

	return &cfg, nil
}
