package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

var allowedKeys = []string{
	"bind_address",
	"encryption_key",
	"max_file_size",
	"rate_limit_per_minute",
	"allowed_image_types",
	"admin_secret",
	"log_level",
	"trust_forwarded_for",
	"worker.upload_delay_ms",
	"worker.queue_capacity",
	"backend.kind",
	"backend.timeout_ms",
	"backend.telegram.bot_token",
	"backend.telegram.chat_id",
	"backend.telegram.log_chat_id",
	"backend.telegram.api_url",
	"backend.s3.bucket",
	"backend.s3.region",
	"backend.s3.endpoint",
	"backend.s3.access_key_id",
	"backend.s3.secret_access_key",
	"backend.s3.path_style",
	"backend.local.root",
}

var secretKeys = map[string]struct{}{
	"encryption_key":               {},
	"admin_secret":                 {},
	"backend.telegram.bot_token":   {},
	"backend.s3.secret_access_key": {},
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// IsSecretKey reports whether key holds a credential that should be masked
// when printed.
func IsSecretKey(key string) bool {
	_, ok := secretKeys[key]
	return ok
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "bind_address":
		return c.BindAddress, nil
	case "encryption_key":
		return c.EncryptionKey, nil
	case "max_file_size":
		return strconv.FormatInt(c.MaxFileSize, 10), nil
	case "rate_limit_per_minute":
		return strconv.Itoa(c.RateLimitPerMinute), nil
	case "allowed_image_types":
		return strings.Join(c.AllowedImageTypes, ","), nil
	case "admin_secret":
		return c.AdminSecret, nil
	case "log_level":
		return c.LogLevel, nil
	case "trust_forwarded_for":
		return strconv.FormatBool(c.TrustForwardedFor), nil
	case "worker.upload_delay_ms":
		return strconv.FormatInt(c.Worker.UploadDelayMS, 10), nil
	case "worker.queue_capacity":
		return strconv.Itoa(c.Worker.QueueCapacity), nil
	case "backend.kind":
		return c.Backend.Kind, nil
	case "backend.timeout_ms":
		return strconv.FormatInt(c.Backend.TimeoutMS, 10), nil
	case "backend.telegram.bot_token":
		return c.Backend.Telegram.BotToken, nil
	case "backend.telegram.chat_id":
		return strconv.FormatInt(c.Backend.Telegram.ChatID, 10), nil
	case "backend.telegram.log_chat_id":
		return strconv.FormatInt(c.Backend.Telegram.LogChatID, 10), nil
	case "backend.telegram.api_url":
		return c.Backend.Telegram.APIURL, nil
	case "backend.s3.bucket":
		return c.Backend.S3.Bucket, nil
	case "backend.s3.region":
		return c.Backend.S3.Region, nil
	case "backend.s3.endpoint":
		return c.Backend.S3.Endpoint, nil
	case "backend.s3.access_key_id":
		return c.Backend.S3.AccessKeyID, nil
	case "backend.s3.secret_access_key":
		return c.Backend.S3.SecretAccessKey, nil
	case "backend.s3.path_style":
		return strconv.FormatBool(c.Backend.S3.PathStyle), nil
	case "backend.local.root":
		return c.Backend.Local.Root, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return fmt.Errorf("config set only edits TOML files; edit %s by hand", path)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "max_file_size", "rate_limit_per_minute", "worker.queue_capacity", "backend.timeout_ms":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "worker.upload_delay_ms":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return parsed, nil
	case "backend.telegram.chat_id", "backend.telegram.log_chat_id":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", key)
		}
		return parsed, nil
	case "trust_forwarded_for", "backend.s3.path_style":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "allowed_image_types":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
