package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
// AurumVault 主服务与 UHI 对端服务共用同一结构，各自加载各自的 yaml
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	CustomerNotification string `mapstructure:"customer_notification"`
}

// WebhookConfig 结清通知投递配置
// Secret 是与对端共享的 HMAC 密钥，双方各自持有同一份
type WebhookConfig struct {
	Endpoint      string `mapstructure:"endpoint"` // 对端接收地址（AurumVault 侧使用）
	Secret        string `mapstructure:"secret"`
	MaxAttempts   int    `mapstructure:"max_attempts"`    // 同步投递尝试次数
	BackoffBaseMS int    `mapstructure:"backoff_base_ms"` // 指数退避基数（毫秒）
}

// BusinessConfig 业务参数
// 审核阈值的"类别覆盖"存数据库（见 category_threshold 表），这里只有全局默认值。
// 阈值作为显式注入的配置传入审核闸，测试可以自由变化而不碰全局状态
type BusinessConfig struct {
	Currency              string  `mapstructure:"currency"`
	MinDepositAmount      float64 `mapstructure:"min_deposit_amount"`
	DefaultDailyLimit     float64 `mapstructure:"default_daily_limit"`
	DefaultMonthlyLimit   float64 `mapstructure:"default_monthly_limit"`
	VerificationThreshold float64 `mapstructure:"verification_threshold"` // 全局默认审核阈值
	MaxRetryCount         int     `mapstructure:"max_retry_count"`        // 发件箱投递重试上限
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
