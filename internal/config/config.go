package config

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"imgvault/internal/auth"
	"imgvault/internal/envelope"
)

const (
	DefaultBindAddress              = "0.0.0.0:3000"
	DefaultMaxFileSize        int64 = 10 * 1024 * 1024
	DefaultRateLimitPerMinute       = 60
	DefaultUploadDelayMS      int64 = 3000
	DefaultQueueCapacity            = 100
	DefaultBackendKind              = BackendTelegram
	DefaultBackendTimeoutMS   int64 = 30000
	DefaultTelegramAPIURL           = "https://api.telegram.org"
	DefaultLocalRoot                = "./data/blobs"
	DefaultConfigFileName           = "imgvault.toml"

	configPathEnvKey = "IMGVAULT_CONFIG"
	envFileEnvKey    = "IMGVAULT_ENV_FILE"
	logLevelEnvKey   = "IMGVAULT_LOG_LEVEL"
)

// Backend kinds.
const (
	BackendTelegram = "telegram"
	BackendS3       = "s3"
	BackendLocal    = "local"
	BackendMemory   = "memory"
)

// DefaultAllowedImageTypes is the default upload allow-list.
var DefaultAllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// WorkerConfig tunes the upload worker.
type WorkerConfig struct {
	UploadDelayMS int64 `toml:"upload_delay_ms" yaml:"upload_delay_ms"`
	QueueCapacity int   `toml:"queue_capacity" yaml:"queue_capacity"`
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	BotToken  string `toml:"bot_token" yaml:"bot_token"`
	ChatID    int64  `toml:"chat_id" yaml:"chat_id"`
	LogChatID int64  `toml:"log_chat_id" yaml:"log_chat_id"`
	APIURL    string `toml:"api_url" yaml:"api_url"`
}

// S3Config holds object storage settings.
type S3Config struct {
	Bucket          string `toml:"bucket" yaml:"bucket"`
	Region          string `toml:"region" yaml:"region"`
	Endpoint        string `toml:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key" yaml:"secret_access_key"`
	PathStyle       bool   `toml:"path_style" yaml:"path_style"`
}

// LocalConfig holds filesystem storage settings.
type LocalConfig struct {
	Root string `toml:"root" yaml:"root"`
}

// BackendConfig selects and configures the storage backend.
type BackendConfig struct {
	Kind      string         `toml:"kind" yaml:"kind"`
	TimeoutMS int64          `toml:"timeout_ms" yaml:"timeout_ms"`
	Telegram  TelegramConfig `toml:"telegram" yaml:"telegram"`
	S3        S3Config       `toml:"s3" yaml:"s3"`
	Local     LocalConfig    `toml:"local" yaml:"local"`
}

// Config defines runtime configuration for imgvault.
type Config struct {
	BindAddress        string        `toml:"bind_address" yaml:"bind_address"`
	EncryptionKey      string        `toml:"encryption_key" yaml:"encryption_key"`
	MaxFileSize        int64         `toml:"max_file_size" yaml:"max_file_size"`
	RateLimitPerMinute int           `toml:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	AllowedImageTypes  []string      `toml:"allowed_image_types" yaml:"allowed_image_types"`
	AdminSecret        string        `toml:"admin_secret" yaml:"admin_secret"`
	LogLevel           string        `toml:"log_level" yaml:"log_level"`
	TrustForwardedFor  bool          `toml:"trust_forwarded_for" yaml:"trust_forwarded_for"`
	Worker             WorkerConfig  `toml:"worker" yaml:"worker"`
	Backend            BackendConfig `toml:"backend" yaml:"backend"`
	SourcePath         string        `toml:"-" yaml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		BindAddress:        DefaultBindAddress,
		MaxFileSize:        DefaultMaxFileSize,
		RateLimitPerMinute: DefaultRateLimitPerMinute,
		AllowedImageTypes:  append([]string(nil), DefaultAllowedImageTypes...),
		Worker: WorkerConfig{
			UploadDelayMS: DefaultUploadDelayMS,
			QueueCapacity: DefaultQueueCapacity,
		},
		Backend: BackendConfig{
			Kind:      DefaultBackendKind,
			TimeoutMS: DefaultBackendTimeoutMS,
			Telegram:  TelegramConfig{APIURL: DefaultTelegramAPIURL},
			Local:     LocalConfig{Root: DefaultLocalRoot},
		},
	}
}

// ResolvePath picks the config file: explicit path, then IMGVAULT_CONFIG,
// then ./imgvault.toml when it exists. An empty result means no file.
func ResolvePath(explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if fromEnv := strings.TrimSpace(os.Getenv(configPathEnvKey)); fromEnv != "" {
		return fromEnv
	}
	if info, err := os.Stat(DefaultConfigFileName); err == nil && !info.IsDir() {
		return DefaultConfigFileName
	}
	return ""
}

// Load reads defaults, the config file at path (if any), the .env file and
// environment overrides, in that order. It does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	path = ResolvePath(path)
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
		cfg.SourcePath = path
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.normalize()
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config %s is a directory", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	return nil
}

// loadDotEnv loads .env (or IMGVAULT_ENV_FILE) without overriding variables
// that are already set.
func loadDotEnv() error {
	path := strings.TrimSpace(os.Getenv(envFileEnvKey))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to parse env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}
	setInt64 := func(key string, dst *int64) error {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			return nil
		}
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s must be an integer", key)
		}
		*dst = parsed
		return nil
	}
	setInt := func(key string, dst *int) error {
		parsed := int64(*dst)
		if err := setInt64(key, &parsed); err != nil {
			return err
		}
		*dst = int(parsed)
		return nil
	}
	setBool := func(key string, dst *bool) error {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			return nil
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false", key)
		}
		*dst = parsed
		return nil
	}

	setString("BIND_ADDRESS", &c.BindAddress)
	setString("ENCRYPTION_KEY", &c.EncryptionKey)
	setString("ADMIN_SECRET", &c.AdminSecret)
	setString(logLevelEnvKey, &c.LogLevel)
	setString("BACKEND", &c.Backend.Kind)
	setString("TELEGRAM_BOT_TOKEN", &c.Backend.Telegram.BotToken)
	setString("TELEGRAM_API_URL", &c.Backend.Telegram.APIURL)
	setString("S3_BUCKET", &c.Backend.S3.Bucket)
	setString("S3_REGION", &c.Backend.S3.Region)
	setString("S3_ENDPOINT", &c.Backend.S3.Endpoint)
	setString("S3_ACCESS_KEY_ID", &c.Backend.S3.AccessKeyID)
	setString("S3_SECRET_ACCESS_KEY", &c.Backend.S3.SecretAccessKey)
	setString("LOCAL_STORAGE_ROOT", &c.Backend.Local.Root)

	if raw := strings.TrimSpace(os.Getenv("ALLOWED_IMAGE_TYPES")); raw != "" {
		c.AllowedImageTypes = splitCSV(raw)
	}

	return errors.Join(
		setInt64("MAX_FILE_SIZE", &c.MaxFileSize),
		setInt("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute),
		setInt64("UPLOAD_DELAY_MS", &c.Worker.UploadDelayMS),
		setInt("QUEUE_CAPACITY", &c.Worker.QueueCapacity),
		setInt64("BACKEND_TIMEOUT_MS", &c.Backend.TimeoutMS),
		setInt64("TELEGRAM_CHAT_ID", &c.Backend.Telegram.ChatID),
		setInt64("TELEGRAM_LOG_CHAT_ID", &c.Backend.Telegram.LogChatID),
		setBool("TRUST_FORWARDED_FOR", &c.TrustForwardedFor),
		setBool("S3_PATH_STYLE", &c.Backend.S3.PathStyle),
	)
}

func (c *Config) normalize() {
	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))
	if c.Backend.Kind == "" {
		c.Backend.Kind = DefaultBackendKind
	}
	if strings.TrimSpace(c.Backend.Telegram.APIURL) == "" {
		c.Backend.Telegram.APIURL = DefaultTelegramAPIURL
	}
	if strings.TrimSpace(c.Backend.Local.Root) == "" {
		c.Backend.Local.Root = DefaultLocalRoot
	}
	if c.Backend.TimeoutMS <= 0 {
		c.Backend.TimeoutMS = DefaultBackendTimeoutMS
	}
	c.AllowedImageTypes = normalizeConfiguredMediaTypes(c.AllowedImageTypes)
	if len(c.AllowedImageTypes) == 0 {
		c.AllowedImageTypes = normalizeConfiguredMediaTypes(DefaultAllowedImageTypes)
	}
}

// Validate reports the first configuration error that would stop the server.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BindAddress) == "" {
		return fmt.Errorf("bind_address is required")
	}
	if _, err := envelope.DecodeKey(c.EncryptionKey); err != nil {
		return fmt.Errorf("encryption_key: %w", err)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be > 0")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate_limit_per_minute must be > 0")
	}
	if c.Worker.UploadDelayMS < 0 {
		return fmt.Errorf("worker.upload_delay_ms must be >= 0")
	}
	if c.Worker.QueueCapacity <= 0 {
		return fmt.Errorf("worker.queue_capacity must be > 0")
	}
	if c.AdminSecret != "" {
		if err := auth.ValidateSecret(c.AdminSecret); err != nil {
			return fmt.Errorf("admin_secret: %w", err)
		}
	}

	switch c.Backend.Kind {
	case BackendTelegram:
		if strings.TrimSpace(c.Backend.Telegram.BotToken) == "" {
			return fmt.Errorf("backend.telegram.bot_token is required")
		}
		if c.Backend.Telegram.ChatID == 0 {
			return fmt.Errorf("backend.telegram.chat_id is required")
		}
	case BackendS3:
		if strings.TrimSpace(c.Backend.S3.Bucket) == "" {
			return fmt.Errorf("backend.s3.bucket is required")
		}
	case BackendLocal:
		if strings.TrimSpace(c.Backend.Local.Root) == "" {
			return fmt.Errorf("backend.local.root is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown backend kind %q", c.Backend.Kind)
	}
	return nil
}

// EncryptionKeyBytes returns the decoded 32-byte key.
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	return envelope.DecodeKey(c.EncryptionKey)
}

// UploadDelay returns the worker's post-job pause.
func (c *Config) UploadDelay() time.Duration {
	return time.Duration(c.Worker.UploadDelayMS) * time.Millisecond
}

// BackendTimeout returns the per-call backend timeout.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutMS) * time.Millisecond
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func normalizeConfiguredMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, _, err := mime.ParseMediaType(raw)
		if err != nil {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(parsed))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
