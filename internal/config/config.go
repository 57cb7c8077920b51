package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/labhacker007/Joti-sub001/internal/duplicate"
)

const (
	DefaultConfigDir  = ".joti"
	DefaultConfigFile = "config.yaml"
	DefaultDBFile     = "joti.db"
	DefaultLogFile    = "executions.jsonl"
	DefaultPacksDir   = "packs"
	DefaultListenAddr = "127.0.0.1:8088"
)

type Config struct {
	ConfigDir    string `yaml:"-"`
	DBPath       string `yaml:"db_path"`
	ExecutionLog string `yaml:"execution_log"`
	PacksDir     string `yaml:"packs_dir"`
	ListenAddr   string `yaml:"listen_addr"`
	LogLevel     string `yaml:"log_level"`
	Development  bool   `yaml:"development"`

	Engine    EngineConfig     `yaml:"engine"`
	Duplicate duplicate.Config `yaml:"duplicate_detection"`
	Redis     RedisConfig      `yaml:"redis"`
	Models    ModelsConfig     `yaml:"models"`
}

// EngineConfig controls guardrail execution.
type EngineConfig struct {
	// DefaultRetries caps fix-and-revalidate rounds for every guardrail.
	DefaultRetries int `yaml:"default_retries"`
	// ResolveCacheTTL is how long an effective guardrail set is reused. Zero disables caching.
	ResolveCacheTTL time.Duration `yaml:"resolve_cache_ttl"`
}

// RedisConfig enables the duplicate candidate cache when Address is set.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type ModelsConfig struct {
	Primary     ModelConfig   `yaml:"primary"`
	Secondary   ModelConfig   `yaml:"secondary"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// ModelConfig is one OpenAI-compatible endpoint. An endpoint with no
// APIBase and no APIKey is unused.
type ModelConfig struct {
	Name    string `yaml:"name"`
	APIBase string `yaml:"api_base"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

func (m ModelConfig) Configured() bool {
	return m.APIBase != "" || m.APIKey != ""
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	return &Config{
		ConfigDir:    configDir,
		DBPath:       filepath.Join(configDir, DefaultDBFile),
		ExecutionLog: filepath.Join(configDir, DefaultLogFile),
		PacksDir:     filepath.Join(configDir, DefaultPacksDir),
		ListenAddr:   DefaultListenAddr,
		LogLevel:     "info",
		Engine: EngineConfig{
			DefaultRetries:  2,
			ResolveCacheTTL: 30 * time.Second,
		},
		Duplicate: duplicate.DefaultConfig(),
		Redis:     RedisConfig{TTL: 2 * time.Minute},
		Models: ModelsConfig{
			Primary:     ModelConfig{Name: "primary"},
			Secondary:   ModelConfig{Name: "secondary"},
			Temperature: 0.2,
			MaxTokens:   1024,
			CallTimeout: 60 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, ~/.joti/.env, the YAML file
// at path (or ~/.joti/config.yaml when path is empty) and JOTI_* environment
// variables, in that order. An explicit path must exist.
func Load(path string) (*Config, error) {
	configDir, err := configHome()
	if err != nil {
		return nil, err
	}
	if err := ensureDir(configDir); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	for _, env := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if err := godotenv.Load(env); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", env, err)
		}
	}

	cfg := Default(configDir)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(configDir, DefaultConfigFile)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv()
	cfg.ConfigDir = configDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DBPath = getEnv("JOTI_DB_PATH", c.DBPath)
	c.ExecutionLog = getEnv("JOTI_EXECUTION_LOG", c.ExecutionLog)
	c.PacksDir = getEnv("JOTI_PACKS_DIR", c.PacksDir)
	c.ListenAddr = getEnv("JOTI_LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = getEnv("JOTI_LOG_LEVEL", c.LogLevel)
	c.Development = getEnvBool("JOTI_DEVELOPMENT", c.Development)

	c.Engine.DefaultRetries = getEnvInt("JOTI_DEFAULT_RETRIES", c.Engine.DefaultRetries)
	c.Engine.ResolveCacheTTL = getEnvDuration("JOTI_RESOLVE_CACHE_TTL", c.Engine.ResolveCacheTTL)

	c.Duplicate.SimilarityThreshold = getEnvFloat("JOTI_DUP_THRESHOLD", c.Duplicate.SimilarityThreshold)
	c.Duplicate.LookbackDays = getEnvInt("JOTI_DUP_LOOKBACK_DAYS", c.Duplicate.LookbackDays)
	c.Duplicate.SemanticEnabled = getEnvBool("JOTI_DUP_SEMANTIC", c.Duplicate.SemanticEnabled)

	c.Redis.Address = getEnv("JOTI_REDIS_ADDR", c.Redis.Address)
	c.Redis.Password = getEnv("JOTI_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("JOTI_REDIS_DB", c.Redis.DB)

	c.Models.Primary.APIBase = getEnv("JOTI_PRIMARY_API_BASE", c.Models.Primary.APIBase)
	c.Models.Primary.APIKey = getEnv("JOTI_PRIMARY_API_KEY", c.Models.Primary.APIKey)
	if c.Models.Primary.APIKey == "" {
		c.Models.Primary.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	c.Models.Primary.Model = getEnv("JOTI_PRIMARY_MODEL", c.Models.Primary.Model)
	c.Models.Secondary.APIBase = getEnv("JOTI_SECONDARY_API_BASE", c.Models.Secondary.APIBase)
	c.Models.Secondary.APIKey = getEnv("JOTI_SECONDARY_API_KEY", c.Models.Secondary.APIKey)
	c.Models.Secondary.Model = getEnv("JOTI_SECONDARY_MODEL", c.Models.Secondary.Model)
}

func (c *Config) Validate() error {
	if c.Engine.DefaultRetries < 0 {
		return fmt.Errorf("engine.default_retries must be >= 0, got %d", c.Engine.DefaultRetries)
	}
	if c.Engine.ResolveCacheTTL < 0 {
		return fmt.Errorf("engine.resolve_cache_ttl must be >= 0")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	if c.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	if c.Models.MaxTokens < 0 {
		return fmt.Errorf("models.max_tokens must be >= 0")
	}
	if err := c.Duplicate.Validate(); err != nil {
		return err
	}
	return nil
}

// configHome is ~/.joti unless JOTI_HOME is set.
func configHome() (string, error) {
	if dir := os.Getenv("JOTI_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, DefaultConfigDir), nil
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
