package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// aiKeyEnvFallbacks are consulted in order when no AI key is configured.
var aiKeyEnvFallbacks = []string{"GEMINI_API_KEY", "GOOGLE_GENERATIVE_AI_API_KEY"}

// applyFallbacks applies environment variable fallbacks
func (c *Config) applyFallbacks() {
	c.applyAIKeyFallbacks()
	c.applyServerAPIKeyFallbacks()
	c.applyTLSDefaults()
	c.applyObservabilityDefaults()
}

func (c *Config) applyAIKeyFallbacks() {
	if c.AI.APIKey != "" {
		return
	}
	for _, name := range aiKeyEnvFallbacks {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			c.AI.APIKey = key
			return
		}
	}
}

// applyServerAPIKeyFallbacks accepts a comma separated ATSLITE_SERVER_APIKEYS
func (c *Config) applyServerAPIKeyFallbacks() {
	if len(c.Server.APIKeys) == 0 {
		if apiKeysEnv := os.Getenv("ATSLITE_SERVER_APIKEYS"); apiKeysEnv != "" {
			c.Server.APIKeys = splitList(apiKeysEnv)
		}
	}
}

func (c *Config) applyTLSDefaults() {
	if c.Server.TLS.Mode == "" {
		c.Server.TLS.Mode = "disabled"
	}
	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode != "disabled" {
		c.Server.TLS.MinVersion = "1.2"
	}
}

func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// maskSecret keeps the first and last four characters of long secrets.
func maskSecret(s string) string {
	switch {
	case len(s) > 8:
		return s[:4] + "****" + s[len(s)-4:]
	case s != "":
		return "****"
	default:
		return ""
	}
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"ATSLITE_AI_APIKEY",
		"ATSLITE_AI_PROVIDER",
		"ATSLITE_AI_MODEL",
		"ATSLITE_DATA_CSVPATH",
		"ATSLITE_SERVER_PORT",
		"ATSLITE_SERVER_HOST",
		"ATSLITE_APP_LOGLEVEL",
		"ATSLITE_VAULT_ENABLED",
		"GEMINI_API_KEY",
		"GOOGLE_GENERATIVE_AI_API_KEY",
	}
	for _, envVar := range envVars {
		value := os.Getenv(envVar)
		if value == "" {
			continue
		}
		if strings.Contains(strings.ToLower(envVar), "key") {
			value = "***MASKED***"
		}
		log.Printf("[CONFIG] env %s=%s", envVar, value)
	}

	aiKey := "***NOT SET*** (offline mode)"
	if c.AI.APIKey != "" {
		aiKey = "***CONFIGURED***"
	}
	log.Printf("[CONFIG] AI: provider=%s model=%s key=%s", c.AI.Provider, c.AI.Model, aiKey)
	log.Printf("[CONFIG] Data: csv=%s cacheTTL=%s watch=%t", c.Data.CSVPath, c.Data.CacheTTL, c.Data.Watch)
	log.Printf("[CONFIG] Server: %s tls=%s", c.Server.Address(), c.Server.TLS.Mode)
	log.Printf("[CONFIG] Log level: %s, vault: %t, observability: %t",
		c.App.LogLevel, c.Vault.Enabled, c.Observability.Enabled)
}
