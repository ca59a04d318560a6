// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（密码、API Key）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 凭据单一数据源：密码/密钥只存在 .env 文件中（YAML 中不存储任何密码）。
//
// 环境：
//   - 开发: APP_ENV=dev (默认) → configs/dev.yaml
//   - 测试: APP_ENV=test → configs/test.yaml
//   - 生产: APP_ENV=prod → configs/prod.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Auth       AuthConfig       `yaml:"auth"`
	Email      EmailConfig      `yaml:"email"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Generation GenerationConfig `yaml:"generation"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig MongoDB 配置
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从 MONGO_ROOT_PASSWORD 环境变量读取
	Name     string `yaml:"name"`
	URI      string `yaml:"uri"` // 连接 URI（优先于 host/port）
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // 只从 REDIS_PASSWORD 环境变量读取
}

// MinIOConfig MinIO 对象存储配置
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"` // 默认 pairshot-images
}

// AuthConfig 认证配置
// JWTSecret 只从 JWT_SECRET 环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret       string        `yaml:"-"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`  // 例如 15m
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"` // 例如 168h
}

// UnmarshalYAML 支持 "15m" 这类时长写法（yaml.v3 不原生支持 time.Duration）
func (a *AuthConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		AccessTokenTTL  string `yaml:"access_token_ttl"`
		RefreshTokenTTL string `yaml:"refresh_token_ttl"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.AccessTokenTTL != "" {
		d, err := time.ParseDuration(raw.AccessTokenTTL)
		if err != nil {
			return fmt.Errorf("auth.access_token_ttl: %w", err)
		}
		a.AccessTokenTTL = d
	}
	if raw.RefreshTokenTTL != "" {
		d, err := time.ParseDuration(raw.RefreshTokenTTL)
		if err != nil {
			return fmt.Errorf("auth.refresh_token_ttl: %w", err)
		}
		a.RefreshTokenTTL = d
	}
	return nil
}

// EmailConfig 事务邮件配置（Resend）
type EmailConfig struct {
	APIKey string `yaml:"-"`    // 只从 RESEND_API_KEY 环境变量读取
	From   string `yaml:"from"` // 发件人，如 "Pairshot <noreply@pairshot.app>"
}

// ProvidersConfig 图像供应商配置
//
// API Key 只从环境变量读取（STABILITY_API_KEY / DEEPINFRA_API_KEY）；
// 免费供应商无需凭据。
type ProvidersConfig struct {
	PollinationsBaseURL string `yaml:"pollinations_base_url"`
	StabilityBaseURL    string `yaml:"stability_base_url"`
	StabilityAPIKey     string `yaml:"-"`
	DeepInfraBaseURL    string `yaml:"deepinfra_base_url"`
	DeepInfraAPIKey     string `yaml:"-"`
}

// GenerationConfig 生成核心配置
type GenerationConfig struct {
	SessionCap      int `yaml:"session_cap"`       // 会话生成上限，默认 20
	AttemptBudget   int `yaml:"attempt_budget"`    // 尝试预算，默认 10
	RetentionCap    int `yaml:"retention_cap"`     // 历史留存条数，默认 20
	CostFull        int `yaml:"cost_full"`         // 全部成功扣减点数，默认 2
	CostPartial     int `yaml:"cost_partial"`      // 部分成功扣减点数，默认 1
	DisplayPageSize int `yaml:"display_page_size"` // 历史展示页大小，默认 10
}

// WorkerConfig action-worker 配置
type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // 轮询间隔，默认 10s
	BatchSize    int           `yaml:"batch_size"`    // 每轮处理条数，默认 10
	// AllowedInitiators 允许创建管理动作的账户 ID 白名单，
	// 从 WORKER_ALLOWED_INITIATORS 环境变量读取（逗号分隔）
	AllowedInitiators []string `yaml:"-"`
}

// UnmarshalYAML 同 AuthConfig，时长按字符串解析；零值不覆盖已有配置
func (w *WorkerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		PollInterval string `yaml:"poll_interval"`
		BatchSize    int    `yaml:"batch_size"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.PollInterval != "" {
		d, err := time.ParseDuration(raw.PollInterval)
		if err != nil {
			return fmt.Errorf("worker.poll_interval: %w", err)
		}
		w.PollInterval = d
	}
	if raw.BatchSize > 0 {
		w.BatchSize = raw.BatchSize
	}
	return nil
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env        Environment
	MongoURI   string
	MongoDB    string
	RedisAddr  string
	RedisDB    int
	RedisPass  string
	MinIO      MinIOConfig
	Auth       AuthConfig
	Email      EmailConfig
	Providers  ProvidersConfig
	Generation GenerationConfig
	Worker     WorkerConfig
	APIPort    string
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 构建最终配置
func Load() *Config {
	// 加载 .env
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// 解析环境
	env := parseEnv(getEnv("APP_ENV", "dev"))

	// 加载 YAML 配置
	yamlCfg := loadYAMLConfig(env)

	// 从环境变量获取敏感信息
	yamlCfg.Database.Password = os.Getenv("MONGO_ROOT_PASSWORD")
	yamlCfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	yamlCfg.MinIO.AccessKey = os.Getenv("MINIO_ROOT_USER")
	yamlCfg.MinIO.SecretKey = os.Getenv("MINIO_ROOT_PASSWORD")
	yamlCfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	yamlCfg.Email.APIKey = os.Getenv("RESEND_API_KEY")
	yamlCfg.Providers.StabilityAPIKey = os.Getenv("STABILITY_API_KEY")
	yamlCfg.Providers.DeepInfraAPIKey = os.Getenv("DEEPINFRA_API_KEY")
	if initiators := os.Getenv("WORKER_ALLOWED_INITIATORS"); initiators != "" {
		yamlCfg.Worker.AllowedInitiators = splitAndTrim(initiators)
	}

	// 构建最终配置
	cfg := &Config{
		Env:        env,
		MongoURI:   buildMongoURI(yamlCfg.Database),
		MongoDB:    yamlCfg.Database.Name,
		RedisAddr:  fmt.Sprintf("%s:%d", yamlCfg.Redis.Host, yamlCfg.Redis.Port),
		RedisDB:    yamlCfg.Redis.DB,
		RedisPass:  yamlCfg.Redis.Password,
		MinIO:      yamlCfg.MinIO,
		Auth:       yamlCfg.Auth,
		Email:      yamlCfg.Email,
		Providers:  yamlCfg.Providers,
		Generation: yamlCfg.Generation,
		Worker:     yamlCfg.Worker,
		APIPort:    yamlCfg.Server.Port,
	}

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	// 1. 初始化默认值
	cfg := &YAMLConfig{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Host: "localhost", Port: 27017, Name: "pairshot"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		MinIO:    MinIOConfig{Endpoint: "localhost:9000", Bucket: "pairshot-images"},
		Auth: AuthConfig{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Email: EmailConfig{From: "Pairshot <noreply@pairshot.app>"},
		Providers: ProvidersConfig{
			PollinationsBaseURL: "https://image.pollinations.ai",
			StabilityBaseURL:    "https://api.stability.ai",
			DeepInfraBaseURL:    "https://api.deepinfra.com",
		},
		Generation: GenerationConfig{
			SessionCap:      20,
			AttemptBudget:   10,
			RetentionCap:    20,
			CostFull:        2,
			CostPartial:     1,
			DisplayPageSize: 10,
		},
		Worker: WorkerConfig{
			PollInterval: 10 * time.Second,
			BatchSize:    10,
		},
	}

	// 2. 加载 common.yaml（公共配置）
	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	// 3. 加载 {env}.yaml（环境特定配置，覆盖公共配置）
	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// buildMongoURI 构建 MongoDB 连接字符串
func buildMongoURI(db DatabaseConfig) string {
	if db.URI != "" {
		return db.URI
	}
	if db.User != "" && db.Password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", db.User, db.Password, db.Host, db.Port)
	}
	return fmt.Sprintf("mongodb://%s:%d", db.Host, db.Port)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Mongo: %s, Redis: %s, MinIO: %s}",
		c.Env, maskPassword(c.MongoURI), c.RedisAddr, c.MinIO.Endpoint)
}

// maskPassword 隐藏密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}
