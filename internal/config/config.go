package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config trust-console 配置（HTTP 控制台 + CLI 共用）
type Config struct {
	HTTP struct {
		Addr string
	}
	// API 后端 REST API（所有资源共用一个 base URL，不再按页面写死）
	API struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}
	PageSize int
	Session  SessionConfig
	Redis    RedisConfig

	DBEnabled bool
	Database  DatabaseConfig

	MQTT MQTTConfig
	Log  struct {
		Level  string
		Format string
	}
	ExportDir string
}

// SessionConfig 会话 token 存储
type SessionConfig struct {
	Store string // "redis" | "memory"
	Key   string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig 数据库配置（导出审计）
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// MQTTConfig 记录变更通知
type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// DefaultSessionKey 会话 token 的固定 key
const DefaultSessionKey = "trust-console:session:token"

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.API.BaseURL = strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000/api"), "/")
	cfg.API.Token = getEnv("API_TOKEN", "")
	cfg.API.Timeout = time.Duration(parseInt(getEnv("API_TIMEOUT_SECONDS", "30"), 30)) * time.Second

	cfg.PageSize = parseInt(getEnv("PAGE_SIZE", "10"), 10)
	if cfg.PageSize < 1 {
		cfg.PageSize = 10
	}

	cfg.Session.Store = getEnv("SESSION_STORE", "redis")
	cfg.Session.Key = getEnv("SESSION_KEY", DefaultSessionKey)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	// 审计默认关闭：没有数据库时导出照常进行
	cfg.DBEnabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "trust")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "5"), 5)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "2"), 2)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "trust-console")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.TopicPrefix = strings.TrimRight(getEnv("MQTT_TOPIC_PREFIX", "trust-console/changes"), "/")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")
	cfg.ExportDir = getEnv("EXPORT_DIR", ".")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
