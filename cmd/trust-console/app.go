package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trust-console/internal/audit"
	"trust-console/internal/config"
	"trust-console/internal/database"
	"trust-console/internal/export"
	"trust-console/internal/logger"
	"trust-console/internal/manager"
	"trust-console/internal/notify"
	"trust-console/internal/resource"
	"trust-console/internal/session"
	"trust-console/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// app 进程级依赖：配置、日志、会话存储、审计、变更通知、资源注册表
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	sessions *session.KVStore
	registry *manager.Registry

	redisClient *redis.Client
	db          *sql.DB
	mqttClient  *notify.Client
}

func newApp(cfg *config.Config) (*app, error) {
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "trust-console")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{cfg: cfg, logger: log}

	var kv store.KV
	switch cfg.Session.Store {
	case "memory":
		kv = store.NewMemoryKV()
	default:
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		kv = store.NewRedisKV(a.redisClient)
	}
	a.sessions = session.NewKVStore(kv, cfg.Session.Key)

	// 登录保存的 token 优先，其次是 API_TOKEN
	tokens := session.ContextSource{Fallback: session.Chain{a.sessions, session.Static(cfg.API.Token)}}

	var recorder audit.Recorder = audit.Nop{}
	if cfg.DBEnabled {
		if db, err := database.NewPostgresDB(&cfg.Database); err == nil {
			pg := audit.NewPostgresRecorder(db, log)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = pg.EnsureSchema(ctx)
			cancel()
			if err != nil {
				log.Warn("export_audit schema check failed", zap.Error(err))
			}
			a.db = db
			recorder = pg
			log.Info("DB enabled for export audit")
		} else {
			log.Warn("DB enabled but connection failed, export audit disabled", zap.Error(err))
		}
	}

	var publisher notify.Publisher = notify.Nop{}
	if cfg.MQTT.Enabled {
		if c, err := notify.NewClient(&cfg.MQTT); err == nil {
			a.mqttClient = c
			publisher = notify.NewMQTTPublisher(c, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, log)
			log.Info("MQTT change events enabled", zap.String("broker", cfg.MQTT.Broker))
		} else {
			log.Warn("MQTT enabled but connection failed, change events disabled", zap.Error(err))
		}
	}

	a.registry = manager.NewRegistry(manager.Options{
		Catalog:   resource.DefaultCatalog(),
		BaseURL:   cfg.API.BaseURL,
		Tokens:    tokens,
		PageSize:  cfg.PageSize,
		Timeout:   cfg.API.Timeout,
		Exporter:  export.New(),
		Audit:     recorder,
		Publisher: publisher,
		Logger:    log,
	})
	return a, nil
}

func (a *app) Close() {
	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	_ = database.Close(a.db)
	_ = a.logger.Sync()
}
