package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Document DocumentConfig
	Expert   ExpertConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	document, err := loadDocumentConfig()
	if err != nil {
		return nil, err
	}

	expert, err := loadExpertConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Storage:  storage,
		Auth:     auth,
		Document: document,
		Expert:   expert,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
	Env  string
}

// IsDevelopment reports whether human-readable console logging should be used.
func (c ServerConfig) IsDevelopment() bool {
	return c.Env == "" || c.Env == "development"
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	env := getEnvOrDefault("APP_ENV", "development")

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, Env: env}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, Env: env}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider       string
	APIKey         string
	AccessKey      string
	SecretKey      string
	Model          string
	BaseURL        string
	Region         string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	StreamResponse bool
}

// Enabled 表示是否提供了必需的密钥。占位符形式的密钥视为未配置。
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	if c.Provider == ProviderArk && c.AccessKey != "" && c.SecretKey != "" {
		return true
	}
	return c.APIKey != "" && !IsPlaceholderCredential(c.APIKey)
}

// IsPlaceholderCredential detects template values such as YOUR_GEMINI_API_KEY_HERE.
func IsPlaceholderCredential(key string) bool {
	upper := strings.ToUpper(strings.TrimSpace(key))
	return strings.HasPrefix(upper, "YOUR_") && strings.HasSuffix(upper, "_HERE")
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("API key is not configured for provider %q", c.Provider)
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	switch c.Provider {
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	case ProviderOpenAI, ProviderGemini:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      c.APIKey,
			BaseURL:     c.BaseURL,
			Model:       c.Model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", c.Provider)
	}
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("AI_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER")))
	if provider == "" {
		provider = ProviderGemini
		if os.Getenv("ARK_API_KEY") != "" || os.Getenv("ARK_ACCESS_KEY") != "" {
			provider = ProviderArk
		}
	}

	cfg := AIConfig{
		Provider:       provider,
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
	}

	switch provider {
	case ProviderArk:
		cfg.APIKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Model = getEnvOrDefault("ARK_MODEL", strings.TrimSpace(os.Getenv("AI_MODEL")))
		cfg.BaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
	case ProviderOpenAI:
		cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		cfg.Model = getEnvOrDefault("OPENAI_MODEL", getEnvOrDefault("AI_MODEL", "gpt-4o-mini"))
		cfg.BaseURL = getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	case ProviderGemini:
		cfg.APIKey = getEnvOrDefault("GEMINI_API_KEY", strings.TrimSpace(os.Getenv("API_KEY")))
		cfg.Model = getEnvOrDefault("GEMINI_MODEL", getEnvOrDefault("AI_MODEL", "gemini-2.5-flash"))
		cfg.BaseURL = getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	return cfg, nil
}

// StorageConfig 描述会话持久化使用的键值存储。
type StorageConfig struct {
	Driver     string
	RedisURL   string
	SQLitePath string
	KeyPrefix  string
}

func loadStorageConfig() (StorageConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", StorageMemory))
	switch driver {
	case StorageMemory, StorageRedis, StorageSQLite:
	default:
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_DRIVER value %q", driver)
	}

	cfg := StorageConfig{
		Driver:     driver,
		RedisURL:   getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "dadmind.db"),
		KeyPrefix:  getEnvOrDefault("STORAGE_KEY_PREFIX", "dadmind"),
	}
	return cfg, nil
}

// AuthConfig 描述模拟登录签发令牌的参数。
type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// DefaultAuthSecret is used when AUTH_SECRET is unset; only suitable for local runs.
const DefaultAuthSecret = "dadmind-dev-secret"

func loadAuthConfig() (AuthConfig, error) {
	ttl, err := parseDurationEnv("AUTH_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return AuthConfig{}, err
	}
	return AuthConfig{
		Secret:   getEnvOrDefault("AUTH_SECRET", DefaultAuthSecret),
		TokenTTL: ttl,
	}, nil
}

// DocumentConfig 描述上传文档的截断预算。
type DocumentConfig struct {
	MaxChars       int
	PromptExcerpt  int
	MaxUploadBytes int64
}

func loadDocumentConfig() (DocumentConfig, error) {
	cfg := DocumentConfig{
		MaxChars:       20000,
		PromptExcerpt:  15000,
		MaxUploadBytes: 10 << 20,
	}

	if v, err := parseOptionalIntEnv("DOCUMENT_MAX_CHARS"); err != nil {
		return DocumentConfig{}, err
	} else if v != nil {
		if *v < 1 {
			return DocumentConfig{}, fmt.Errorf("invalid DOCUMENT_MAX_CHARS value %d", *v)
		}
		cfg.MaxChars = *v
	}

	if v, err := parseOptionalIntEnv("DOCUMENT_PROMPT_EXCERPT"); err != nil {
		return DocumentConfig{}, err
	} else if v != nil {
		if *v < 1 {
			return DocumentConfig{}, fmt.Errorf("invalid DOCUMENT_PROMPT_EXCERPT value %d", *v)
		}
		cfg.PromptExcerpt = *v
	}

	return cfg, nil
}

// ExpertConfig 控制模拟专家回复。
type ExpertConfig struct {
	ReplyDelay time.Duration
}

func loadExpertConfig() (ExpertConfig, error) {
	delay, err := parseDurationEnv("EXPERT_REPLY_DELAY", 1500*time.Millisecond)
	if err != nil {
		return ExpertConfig{}, err
	}
	return ExpertConfig{ReplyDelay: delay}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
