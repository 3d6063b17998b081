package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/rl1809/vending-ledger/internal/core/domain"
)

const (
	envPrefix      = "VENDING"
	configFileName = "config"
	configFileType = "yaml"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

type Config struct {
	ServiceName string `mapstructure:"service_name"`
	Env         string `mapstructure:"env"`
	LogLevel    string `mapstructure:"log_level"`
	HTTPAddr    string `mapstructure:"http_addr"`
	GRPCAddr    string `mapstructure:"grpc_addr"`
	Workers     int    `mapstructure:"workers"`
	QueueSize   int    `mapstructure:"queue_size"`

	Store  StoreConfig  `mapstructure:"store"`
	Redis  RedisConfig  `mapstructure:"redis"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Audit  AuditConfig  `mapstructure:"audit"`

	// Owner and InitialAmount bootstrap an uninitialized ledger.
	Owner         string   `mapstructure:"owner"`
	InitialAmount []string `mapstructure:"initial_amount"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AuditConfig struct {
	// MySQL enables the ledger_audit table when the MySQL DSN is set.
	MySQL bool `mapstructure:"mysql"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "vending-ledger")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":50051")
	v.SetDefault("workers", 4)
	v.SetDefault("queue_size", 1024)
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("mysql.dsn", "root:root@tcp(localhost:3306)/vending?parseTime=true")
	v.SetDefault("sqlite.path", "vending.db")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "vending")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "vending.audit")
	v.SetDefault("audit.mysql", false)
	v.SetDefault("owner", "")
	v.SetDefault("initial_amount", []string{})
}

// Load reads config.yaml from dir (or ., /etc/vending when dir is empty) and
// applies VENDING_* environment overrides. A missing file is not an error.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	if dir != "" {
		v.AddConfigPath(dir)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vending")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverRedis, DriverMySQL, DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative, got %d", c.QueueSize)
	}
	if _, err := c.InitialItems(); err != nil {
		return err
	}
	return nil
}

// InitialItems parses InitialAmount entries of the form "chocolate=3".
func (c *Config) InitialItems() ([]domain.ItemAmount, error) {
	out := make([]domain.ItemAmount, 0, len(c.InitialAmount))
	for _, s := range c.InitialAmount {
		ia, err := domain.ParseItemAmount(s)
		if err != nil {
			return nil, fmt.Errorf("initial_amount: %w", err)
		}
		out = append(out, ia)
	}
	return out, nil
}
