package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		checks  func(*testing.T, *Config)
	}{
		{
			name: "database url from env",
			envVars: map[string]string{
				"CONVOAPI_DATABASE_URL": "postgres://localhost/convoapi_test",
				"CONVOAPI_ENV":          "dev",
			},
			checks: func(t *testing.T, cfg *Config) {
				if cfg.DatabaseURL != "postgres://localhost/convoapi_test" {
					t.Errorf("expected DatabaseURL override, got %s", cfg.DatabaseURL)
				}
				if cfg.Env != "dev" {
					t.Errorf("expected Env=dev, got %s", cfg.Env)
				}
			},
		},
		{
			name: "harmonization window override",
			envVars: map[string]string{
				"CONVOAPI_HARMONIZATION_WINDOW": "5s",
			},
			checks: func(t *testing.T, cfg *Config) {
				if cfg.Harmonization.Window != 5*time.Second {
					t.Errorf("expected 5s harmonization window, got %s", cfg.Harmonization.Window)
				}
			},
		},
		{
			name:    "default values when no env set",
			envVars: map[string]string{},
			checks: func(t *testing.T, cfg *Config) {
				if cfg.LogLevel != "info" {
					t.Errorf("expected default LogLevel=info, got %s", cfg.LogLevel)
				}
				if cfg.Harmonization.Window != 3*time.Second {
					t.Errorf("expected default 3s harmonization window, got %s", cfg.Harmonization.Window)
				}
			},
		},
	}

	envKeys := []string{
		"CONVOAPI_DATABASE_URL", "CONVOAPI_ENV", "CONVOAPI_HARMONIZATION_WINDOW",
		"CONVOAPI_LOG_LEVEL", "CONVOAPI_HTTP_ADDR",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envKeys {
				os.Unsetenv(key)
			}
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}
			defer func() {
				for key := range tt.envVars {
					os.Unsetenv(key)
				}
			}()

			cfg, err := LoadFromEnvironment()
			if err != nil {
				t.Fatalf("LoadFromEnvironment() error = %v", err)
			}
			if tt.checks != nil {
				tt.checks(t, cfg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	testConfigPath := filepath.Join(tmpDir, "test_config.json")
	testConfigJSON := `{
  "httpAddr": ":9100",
  "databaseUrl": "postgres://localhost/convoapi_file",
  "logLevel": "debug",
  "harmonization": {"window": 2000000000}
}`
	if err := os.WriteFile(testConfigPath, []byte(testConfigJSON), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}

	tests := []struct {
		name       string
		configPath string
		envVars    map[string]string
		wantErr    bool
		checks     func(*testing.T, *Config)
	}{
		{
			name:       "load from file",
			configPath: testConfigPath,
			checks: func(t *testing.T, cfg *Config) {
				if cfg.HTTPAddr != ":9100" {
					t.Errorf("expected HTTPAddr from file, got %s", cfg.HTTPAddr)
				}
				if cfg.DatabaseURL != "postgres://localhost/convoapi_file" {
					t.Errorf("expected DatabaseURL from file, got %s", cfg.DatabaseURL)
				}
				if cfg.Harmonization.Window != 2*time.Second {
					t.Errorf("expected 2s harmonization window from file, got %s", cfg.Harmonization.Window)
				}
			},
		},
		{
			name:       "env overrides file",
			configPath: testConfigPath,
			envVars: map[string]string{
				"CONVOAPI_DATABASE_URL": "postgres://localhost/convoapi_override",
			},
			checks: func(t *testing.T, cfg *Config) {
				if cfg.DatabaseURL != "postgres://localhost/convoapi_override" {
					t.Errorf("expected env to override file DatabaseURL, got %s", cfg.DatabaseURL)
				}
				if cfg.HTTPAddr != ":9100" {
					t.Error("expected HTTPAddr from file to survive unrelated env override")
				}
			},
		},
		{
			name:       "nonexistent file",
			configPath: "/nonexistent/config.json",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}
			defer func() {
				for key := range tt.envVars {
					os.Unsetenv(key)
				}
			}()

			cfg, err := Load(tt.configPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && tt.checks != nil {
				tt.checks(t, cfg)
			}
		})
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid dev mode config",
			config: &Config{
				DatabaseURL:   "postgres://localhost/x",
				Env:           "dev",
				Harmonization: HarmonizationConfig{Window: 3 * time.Second},
			},
			wantErr: false,
		},
		{
			name: "missing database url",
			config: &Config{
				Env:           "dev",
				Harmonization: HarmonizationConfig{Window: 3 * time.Second},
			},
			wantErr: true,
			errMsg:  "databaseUrl is required in configuration",
		},
		{
			name: "harmonization window below floor",
			config: &Config{
				DatabaseURL:   "postgres://localhost/x",
				Env:           "dev",
				Harmonization: HarmonizationConfig{Window: 500 * time.Millisecond},
			},
			wantErr: true,
			errMsg:  "harmonizationWindow must be between 1s and 10s",
		},
		{
			name: "production requires a real jwt secret",
			config: &Config{
				DatabaseURL:   "postgres://localhost/x",
				Env:           "prod",
				Harmonization: HarmonizationConfig{Window: 3 * time.Second},
				JWT:           JWTConfig{HS256Secret: devDefaultJWTSecret},
			},
			wantErr: true,
			errMsg:  "jwtHs256Secret must be set to a non-default value outside dev mode",
		},
		{
			name: "valid production config",
			config: &Config{
				DatabaseURL:   "postgres://localhost/x",
				Env:           "prod",
				Harmonization: HarmonizationConfig{Window: 3 * time.Second},
				JWT:           JWTConfig{HS256Secret: "a-real-production-secret"},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && err != nil && tt.errMsg != "" && err.Error() != tt.errMsg {
				t.Errorf("Validate() error message = %q, want %q", err.Error(), tt.errMsg)
			}
		})
	}
}
