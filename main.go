package main

import (
	"context"
	"log"
	"os"
	"time"

	"deskchat/internal/api"
	"deskchat/internal/config"
	"deskchat/internal/orchestrator"
	"deskchat/internal/service/action"
	"deskchat/internal/service/answer"
	"deskchat/internal/service/dialogue"
	"deskchat/internal/service/history"
	"deskchat/internal/service/ingest"
	"deskchat/internal/service/nlu"
	"deskchat/internal/service/retrieval"
	"deskchat/internal/storage"

	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("DESKCHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("DESKCHAT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: sessions, messages, actions, kb embeddings
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var pendingStore dialogue.PendingStore
	if cfg.Redis.Host != "" {
		redisStore, err := dialogue.NewRedisStore(cfg)
		if err != nil {
			log.Fatalf("create redis pending store: %v", err)
		}
		defer redisStore.Close()
		pendingStore = redisStore
	} else {
		log.Printf("redis not configured, pending actions held in process memory")
		pendingStore = dialogue.NewMemoryStore()
	}

	embedModel := cfg.Retrieval.EmbeddingModel
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	embedKey := cfg.Retrieval.EmbeddingAPIKey
	if embedKey == "" {
		embedKey = cfg.Providers["openai"].APIKey
	}
	embedder, err := openaiembed.NewEmbedder(context.Background(), &openaiembed.EmbeddingConfig{
		APIKey:  embedKey,
		Model:   embedModel,
		BaseURL: cfg.Retrieval.EmbeddingBaseURL,
	})
	if err != nil {
		log.Fatalf("init embedder: %v", err)
	}

	generator, err := answer.NewGenerator(cfg)
	if err != nil {
		log.Fatalf("init answer generator: %v", err)
	}

	ingestService, err := ingest.NewService(db, embedder, cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		log.Fatalf("init ingest service: %v", err)
	}

	core := orchestrator.New(
		nlu.NewPatternExtractor(),
		dialogue.NewTracker(pendingStore),
		retrieval.NewService(db, embedder, cfg.Retrieval.Collection, cfg.Retrieval.MinScore),
		action.NewExecutor(cfg.OrderAPI.BaseURL, time.Duration(cfg.OrderAPI.TimeoutSeconds)*time.Second),
		generator,
		history.NewService(db),
		cfg.Retrieval.TopK,
	)

	handlers := api.NewHandler(core, ingestService, cfg.Retrieval.Collection)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8001"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
