package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"

	GuardLocal = "local"
	GuardRedis = "redis"
)

// Config 全局配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Job    JobConfig    `mapstructure:"job"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin 模式: debug / release / test
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// DSN 格式: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PointHistory string `mapstructure:"point_history"`
}

// LedgerConfig 账本存储与账户锁
type LedgerConfig struct {
	Storage           string        `mapstructure:"storage"`  // mysql / memory
	WALPath           string        `mapstructure:"wal_path"` // memory 模式下的 WAL 文件，为空则不落盘
	Guard             string        `mapstructure:"guard"`    // local / redis
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	LockRetryInterval time.Duration `mapstructure:"lock_retry_interval"`
	LockMaxRetries    int           `mapstructure:"lock_max_retries"`
	WorkerID          int64         `mapstructure:"worker_id"` // 流水号生成器的机器ID
}

type JobConfig struct {
	OutboxInterval time.Duration `mapstructure:"outbox_interval"`
	AuditInterval  time.Duration `mapstructure:"audit_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	MaxRetryCount  int           `mapstructure:"max_retry_count"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.log_level", "error")

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})

	v.SetDefault("kafka.topic.point_history", "point.history")

	v.SetDefault("ledger.storage", StorageMySQL)
	v.SetDefault("ledger.wal_path", "")
	v.SetDefault("ledger.guard", GuardLocal)
	v.SetDefault("ledger.lock_ttl", 30*time.Second)
	v.SetDefault("ledger.lock_retry_interval", 100*time.Millisecond)
	v.SetDefault("ledger.lock_max_retries", 30)
	v.SetDefault("ledger.worker_id", 1)

	v.SetDefault("job.outbox_interval", 100*time.Millisecond)
	v.SetDefault("job.audit_interval", 10*time.Minute)
	v.SetDefault("job.batch_size", 100)
	v.SetDefault("job.max_retry_count", 5)
}

// LoadConfig 加载配置文件，环境变量 POINT_<SECTION>_<KEY> 优先
// configPath 为空时只使用默认值和环境变量；只有注册过默认值的 key 才能被环境变量覆盖
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("POINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Ledger.Storage {
	case StorageMySQL, StorageMemory:
	default:
		return fmt.Errorf("invalid ledger.storage %q, must be %q or %q", c.Ledger.Storage, StorageMySQL, StorageMemory)
	}
	switch c.Ledger.Guard {
	case GuardLocal, GuardRedis:
	default:
		return fmt.Errorf("invalid ledger.guard %q, must be %q or %q", c.Ledger.Guard, GuardLocal, GuardRedis)
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	if c.Ledger.Storage == StorageMySQL && c.MySQL.Database == "" {
		return errors.New("mysql.database is required when ledger.storage is mysql")
	}
	return nil
}
