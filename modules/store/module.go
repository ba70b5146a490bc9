package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/helpdesk-chat-relay/config"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module provides message persistence services backed by SQLite or Redis.
type Module struct {
	cfg    config.Config
	repo   Repository
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new store module.
func NewModule(cfg config.Config, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Repository returns the active repository. It is nil until Start.
func (m *Module) Repository() Repository {
	return m.repo
}

// RegisterServices registers request-reply services in the service container.
// The framework prefixes service names with "services.store.".
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSave, json.Unmarshal, json.Marshal, m.saveMessage,
	); err != nil {
		return fmt.Errorf("failed to register save service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceList, json.Unmarshal, json.Marshal, m.listMessages,
	); err != nil {
		return fmt.Errorf("failed to register list service: %w", err)
	}

	m.logger.Info("Registered store services", "services", []string{ServiceSave, ServiceList})
	return nil
}

// saveMessage handles the store.save service request.
func (m *Module) saveMessage(ctx context.Context, req SaveMessageRequest, _ *mono.Msg) (SaveMessageResponse, error) {
	if m.repo == nil {
		return SaveMessageResponse{}, fmt.Errorf("store not started")
	}
	id, err := m.repo.Save(ctx, req.Message)
	if err != nil {
		return SaveMessageResponse{}, err
	}
	return SaveMessageResponse{ID: id}, nil
}

// listMessages handles the store.list service request.
func (m *Module) listMessages(ctx context.Context, req ListMessagesRequest, _ *mono.Msg) (ListMessagesResponse, error) {
	if m.repo == nil {
		return ListMessagesResponse{}, fmt.Errorf("store not started")
	}
	messages, err := m.repo.ListMessages(ctx, req.Limit)
	if err != nil {
		return ListMessagesResponse{}, err
	}
	return ListMessagesResponse{Messages: messages, Total: len(messages)}, nil
}

// Start opens the configured backend.
func (m *Module) Start(ctx context.Context) error {
	repo, err := m.open(ctx)
	if err != nil {
		return err
	}
	m.repo = repo
	m.logger.Info("Store module started", "driver", m.cfg.StoreDriver)
	return nil
}

func (m *Module) open(ctx context.Context) (Repository, error) {
	switch m.cfg.StoreDriver {
	case config.StoreDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         m.cfg.RedisAddr,
			PoolSize:     20,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		m.logger.Info("Connected to Redis", "addr", m.cfg.RedisAddr, "key", m.cfg.RedisKey)
		return NewRedisRepository(client, m.cfg.RedisKey), nil

	default:
		db, err := OpenSQLite(m.cfg.DBPath, m.cfg.DBDebug)
		if err != nil {
			return nil, err
		}
		m.logger.Info("Connected to SQLite database", "path", m.cfg.DBPath)
		return NewSQLRepository(db), nil
	}
}

// OpenSQLite opens path and migrates the message schema.
func OpenSQLite(path string, debug bool) (*gorm.DB, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&ChatMessage{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Stop closes the backend connection.
func (m *Module) Stop(_ context.Context) error {
	if m.repo == nil {
		return nil
	}
	if err := m.repo.Close(); err != nil {
		return err
	}
	m.logger.Info("Store module stopped")
	return nil
}

// Health performs a health check on the store backend.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.repo == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "store not initialized",
		}
	}

	if err := m.repo.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("store ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": m.cfg.StoreDriver,
		},
	}
}
