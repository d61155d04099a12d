package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// loadPromptsFromFiles reads the configured prompt files into the inline
// prompt fields. A file wins over an inline prompt.
func (c *Config) loadPromptsFromFiles() error {
	targets := []struct {
		file   string
		target *string
		name   string
	}{
		{c.AI.CustomPrompts.ThinkFile, &c.AI.CustomPrompts.Think, "think"},
		{c.AI.CustomPrompts.SpeakFile, &c.AI.CustomPrompts.Speak, "speak"},
	}
	for _, t := range targets {
		if t.file == "" {
			continue
		}
		content, err := loadPromptFromFile(t.file, t.name)
		if err != nil {
			return err
		}
		*t.target = content
	}
	return nil
}

// loadPromptFromFile loads a trimmed, non-empty prompt from filePath
func loadPromptFromFile(filePath, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s prompt file '%s': %w", operation, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s prompt file not found: %s", operation, absPath)
		}
		return "", fmt.Errorf("failed to read %s prompt file '%s': %w", operation, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s prompt file '%s' is empty", operation, absPath)
	}

	log.Printf("[CONFIG] Loaded %s prompt from file: %s (%d characters)", operation, absPath, len(trimmed))
	return trimmed, nil
}

// validatePromptFiles checks that configured prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var problems []string
	check := func(filePath, operation string) {
		if filePath == "" {
			return
		}
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid path for %s prompt: %s", operation, filePath))
			return
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("%s prompt file not found: %s", operation, absPath))
		}
	}

	check(c.AI.CustomPrompts.ThinkFile, "think")
	check(c.AI.CustomPrompts.SpeakFile, "speak")

	if len(problems) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}
