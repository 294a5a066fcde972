// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Ingest        TxConfig            `mapstructure:"ingest"`
	TagMove       TxConfig            `mapstructure:"tag_move"`
	Repair        RepairConfig        `mapstructure:"repair"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// AdminConfig 管理后台账号，密码以 bcrypt 哈希形式保存。
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// TxConfig 描述一个事务的锁等待上限与整体超时。
type TxConfig struct {
	LockWaitSeconds int `mapstructure:"lock_wait_seconds"`
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`
}

// LockWait 返回锁等待上限，未配置时为 10s。
func (c TxConfig) LockWait() time.Duration {
	if c.LockWaitSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.LockWaitSeconds) * time.Second
}

// Timeout 返回事务整体超时，未配置时为 30s。
func (c TxConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RepairConfig 配置标签完整性修复任务。
type RepairConfig struct {
	BatchSize           int `mapstructure:"batch_size"`
	PauseMillis         int `mapstructure:"pause_ms"`
	ImageTimeoutSeconds int `mapstructure:"image_timeout_seconds"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 环境变量 PICIMPACT_<SECTION>_<KEY> 可覆盖文件中的值。
func Init(configPath string) {
	if err := Load(configPath, &Conf); err != nil {
		panic(err)
	}
}

// Load 读取配置文件到 out。
func Load(configPath string, out *Config) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PICIMPACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("kafka.group_id", "picimpact-go-consumer")
	v.SetDefault("elasticsearch.index_name", "images")
	v.SetDefault("ingest.lock_wait_seconds", 10)
	v.SetDefault("ingest.timeout_seconds", 30)
	v.SetDefault("tag_move.lock_wait_seconds", 10)
	v.SetDefault("tag_move.timeout_seconds", 30)
	v.SetDefault("repair.batch_size", 20)
	v.SetDefault("repair.pause_ms", 100)
	v.SetDefault("repair.image_timeout_seconds", 10)
}
