package config

import (
	"crypto/tls"
	"fmt"
)

// ValidateTLSConfig validates the TLS configuration
func (c *Config) ValidateTLSConfig() error {
	t := c.Server.TLS
	if err := validateTLSMode(t); err != nil {
		return err
	}
	return validateTLSVersion(t)
}

func validateTLSMode(t TLSConfig) error {
	switch t.Mode {
	case "", "disabled":
		return nil
	case "server":
		if t.CertFile == "" || t.KeyFile == "" {
			return fmt.Errorf("TLS certificate and key files are required for server mode")
		}
		return nil
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", t.Mode)
	}
}

func validateTLSVersion(t TLSConfig) error {
	switch t.MinVersion {
	case "", "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", t.MinVersion)
	}
}

// Enabled reports whether the server terminates TLS itself.
func (t TLSConfig) Enabled() bool {
	return t.Mode == "server"
}

// TLSVersion maps MinVersion to the crypto/tls constant, defaulting to 1.2.
func (t TLSConfig) TLSVersion() uint16 {
	if t.MinVersion == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
