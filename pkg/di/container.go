package di

import (
	"gorm.io/gorm"

	"qna-chatbot/backend/ai"
	"qna-chatbot/backend/chat/models"
	"qna-chatbot/backend/chat/repository"
	"qna-chatbot/backend/chat/service"
	"qna-chatbot/backend/pkg/cache"
	"qna-chatbot/backend/pkg/config"
	"qna-chatbot/backend/pkg/jwt"
	"qna-chatbot/backend/pkg/logger"
	"qna-chatbot/backend/pkg/resilience"
	sharedredis "qna-chatbot/backend/shared/redis"
)

// Container holds the long-lived dependencies for the application
type Container struct {
	DB             *gorm.DB
	Logger         *logger.Logger
	JWTService     *jwt.Service
	ChatRepository repository.ChatRepository
	// KeyCache holds derived per-user encryption keys so the key derivation
	// cost is paid once per user, not once per message.
	KeyCache *cache.Cache
	// RedisCache is nil when Redis is disabled; ChatListCache is the same
	// cache behind the service interface, or nil to serve lists from the
	// database alone.
	RedisCache     *sharedredis.ChatListCache
	ChatListCache  service.ChatListCache
	CredentialPool *resilience.CredentialPool
	Completer      ai.Completer
}

// New wires the container from configuration. Migrations run here so every
// entrypoint that builds a container gets a current schema.
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if err := db.AutoMigrate(&models.Chat{}, &models.Message{}); err != nil {
		return nil, err
	}

	container := &Container{
		DB:             db,
		Logger:         log,
		JWTService:     jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry),
		ChatRepository: repository.NewGormChatRepository(db),
		KeyCache:       cache.NewCache(),
	}

	if cfg.Redis.Enabled {
		container.RedisCache = sharedredis.NewChatListCache(cfg.Redis.Addr, cfg.Cache.TTL, log)
		container.ChatListCache = container.RedisCache
	}

	pool, err := resilience.NewCredentialPool(
		resilience.CredentialPoolConfig{
			Name:             "completion",
			FailureThreshold: uint(cfg.Completion.FailureThreshold),
			Cooldown:         cfg.Completion.Cooldown,
		},
		log,
		completionCredentials(cfg)...,
	)
	if err != nil {
		return nil, err
	}
	container.CredentialPool = pool

	container.Completer = ai.NewCompletionClient(ai.CompletionClientConfig{
		BaseURL: cfg.Completion.ServiceURL,
		Timeout: cfg.Completion.Timeout,
	}, pool, log)

	return container, nil
}

// completionCredentials builds the ordered key slots. The secondary slot is
// only added when a second key is configured; a single-key deployment still
// gets retry behavior, just without rotation.
func completionCredentials(cfg *config.Config) []resilience.Credential {
	slots := []resilience.Credential{
		{Name: "primary", Key: cfg.Completion.PrimaryKey},
	}
	if cfg.Completion.SecondaryKey != "" {
		slots = append(slots, resilience.Credential{Name: "secondary", Key: cfg.Completion.SecondaryKey})
	}
	return slots
}
