package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"atslite/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets are KV v2 paths. Empty paths are skipped.
type VaultSecrets struct {
	APIKeys   string `mapstructure:"apiKeys"`   // "keys": comma separated server API keys
	GeminiKey string `mapstructure:"geminiKey"` // "api_key": shared by think and speak
	ThinkKey  string `mapstructure:"thinkKey"`  // "api_key": planner only
	SpeakKey  string `mapstructure:"speakKey"`  // "api_key": summarizer only
}

// VaultClient reads KV v2 secrets.
type VaultClient struct {
	client *api.Client
	logger *errors.Logger
}

// VaultSecret is one KV v2 entry.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// NewVaultClient connects to Vault and checks its health.
func NewVaultClient(cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := resolveVaultToken(cfg)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault at %s: %w", apiCfg.Address, err)
	}
	logger.Info("Connected to Vault",
		"address", apiCfg.Address,
		"version", health.Version,
		"sealed", health.Sealed)

	return &VaultClient{client: client, logger: logger}, nil
}

// resolveVaultToken prefers the inline token over the token file.
func resolveVaultToken(cfg VaultConfig) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		raw, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// Read returns the KV v2 entry at path.
func (vc *VaultClient) Read(path string) (*VaultSecret, error) {
	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	return decodeKV(secret, path)
}

func decodeKV(secret *api.Secret, path string) (*VaultSecret, error) {
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	version, err := kvVersion(metadata["version"])
	if err != nil {
		return nil, fmt.Errorf("secret metadata at %s: %w", path, err)
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

func kvVersion(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	case nil:
		return 0, fmt.Errorf("missing 'version' field")
	default:
		return 0, fmt.Errorf("unexpected type for version: %T", raw)
	}
}

// String returns the string value stored under key at path.
func (vc *VaultClient) String(path, key string) (string, error) {
	secret, err := vc.Read(path)
	if err != nil {
		return "", err
	}
	value, ok := secret.Data[key].(string)
	if !ok {
		return "", fmt.Errorf("key '%s' not found or not a string in secret %s", key, path)
	}
	vc.logger.Debug("Secret read from Vault",
		"path", path,
		"key", key,
		"version", secret.Version,
		"masked_value", maskSecret(value))
	return value, nil
}

// secretBinding maps one Vault value onto the configuration.
type secretBinding struct {
	name  string
	path  string
	key   string
	apply func(cfg *Config, value string)
}

// vaultBindings lists the secrets in the order they are applied. Operation
// keys come after the shared key so they win.
func vaultBindings(s VaultSecrets) []secretBinding {
	return []secretBinding{
		{name: "server API keys", path: s.APIKeys, key: "keys", apply: func(cfg *Config, v string) {
			if keys := splitList(v); len(keys) > 0 {
				cfg.Server.APIKeys = keys
			}
		}},
		{name: "Gemini API key", path: s.GeminiKey, key: "api_key", apply: applyGeminiKey},
		{name: "think API key", path: s.ThinkKey, key: "api_key", apply: func(cfg *Config, v string) {
			cfg.AI.Think.APIKey = v
		}},
		{name: "speak API key", path: s.SpeakKey, key: "api_key", apply: func(cfg *Config, v string) {
			cfg.AI.Speak.APIKey = v
		}},
	}
}

// applyGeminiKey sets the global key and fills operation keys that were left
// empty.
func applyGeminiKey(cfg *Config, key string) {
	cfg.AI.APIKey = key
	if cfg.AI.Think.APIKey == "" {
		cfg.AI.Think.APIKey = key
	}
	if cfg.AI.Speak.APIKey == "" {
		cfg.AI.Speak.APIKey = key
	}
}

// ApplyVaultSecrets loads the configured secrets from Vault into cfg.
func ApplyVaultSecrets(cfg *Config, logger *errors.Logger) error {
	if !cfg.Vault.Enabled {
		logger.Debug("Vault integration disabled, skipping secret loading")
		return nil
	}

	client, err := NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "Failed to initialize Vault client", err)
	}
	return applySecrets(client, cfg, logger)
}

func applySecrets(client *VaultClient, cfg *Config, logger *errors.Logger) error {
	applied := 0
	for _, b := range vaultBindings(cfg.Vault.Secrets) {
		if b.path == "" {
			continue
		}
		value, err := client.String(b.path, b.key)
		if err != nil {
			return errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("Failed to load %s from Vault", b.name), err).WithContext("path", b.path)
		}
		if strings.TrimSpace(value) == "" {
			logger.Warn("Empty secret in Vault", "secret", b.name, "path", b.path)
			continue
		}
		b.apply(cfg, value)
		applied++
	}
	logger.Info("Applied secrets from Vault", "count", applied)
	return nil
}
