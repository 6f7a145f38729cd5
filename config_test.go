package main

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		discordToken:    "token",
		steamAPIKey:     "key",
		spreadsheetID:   "sheet-key",
		credentialsFile: "creds.json",
		sheetName:       "Members",
		port:            8080,
		httpTimeout:     10 * time.Second,
		pickerTimeout:   5 * time.Minute,
		storeCooldown:   250 * time.Millisecond,
	}
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.discordToken = "" }},
		{"missing steam key", func(c *Config) { c.steamAPIKey = "" }},
		{"missing spreadsheet", func(c *Config) { c.spreadsheetID = "" }},
		{"missing credentials", func(c *Config) { c.credentialsFile = "" }},
		{"port too low", func(c *Config) { c.port = 0 }},
		{"port too high", func(c *Config) { c.port = 65536 }},
		{"negative cooldown", func(c *Config) { c.storeCooldown = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.validate(); err == nil {
				t.Error("validate() accepted a bad config")
			}
		})
	}
}
