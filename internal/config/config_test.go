package config

import (
	"testing"
	"time"

	"github.com/prodpulse/prodpulse/internal/models"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		shouldSet    bool
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			shouldSet:    true,
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_VAR_MISSING",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    false,
			want:         "default",
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_VAR_EMPTY",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    true,
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		shouldSet    bool
		want         int
	}{
		{
			name:         "returns environment variable as int when set with valid integer",
			key:          "TEST_INT_VAR",
			defaultValue: 100,
			envValue:     "200",
			shouldSet:    true,
			want:         200,
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_INT_VAR_MISSING",
			defaultValue: 100,
			envValue:     "",
			shouldSet:    false,
			want:         100,
		},
		{
			name:         "returns default when environment variable is not a valid integer",
			key:          "TEST_INT_VAR_INVALID",
			defaultValue: 100,
			envValue:     "not_a_number",
			shouldSet:    true,
			want:         100,
		},
		{
			name:         "handles zero",
			key:          "TEST_INT_VAR_ZERO",
			defaultValue: 100,
			envValue:     "0",
			shouldSet:    true,
			want:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		shouldSet    bool
		want         time.Duration
	}{
		{
			name:         "parses a valid duration",
			key:          "TEST_DUR_VAR",
			defaultValue: time.Minute,
			envValue:     "30s",
			shouldSet:    true,
			want:         30 * time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DUR_VAR_MISSING",
			defaultValue: time.Minute,
			envValue:     "",
			shouldSet:    false,
			want:         time.Minute,
		},
		{
			name:         "returns default when invalid",
			key:          "TEST_DUR_VAR_INVALID",
			defaultValue: time.Minute,
			envValue:     "soon",
			shouldSet:    true,
			want:         time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvAsDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("fails without OPENAI_API_KEY", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for missing OPENAI_API_KEY")
		}
	})

	t.Run("returns defaults when only the API key is set", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-api-key")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Port != "8080" {
			t.Errorf("Port = %v, want 8080", cfg.Port)
		}
		if cfg.ClassifierModel != "gpt-4o-mini" {
			t.Errorf("ClassifierModel = %v, want gpt-4o-mini", cfg.ClassifierModel)
		}
		if cfg.EmbeddingDimensions != 1536 {
			t.Errorf("EmbeddingDimensions = %d, want 1536", cfg.EmbeddingDimensions)
		}
		if cfg.MaxAttempts != 3 {
			t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
		}
		if cfg.ClaimStaleness != 5*time.Minute {
			t.Errorf("ClaimStaleness = %v, want 5m", cfg.ClaimStaleness)
		}
		if cfg.IdentityScope != models.IdentityScopePerPlatform {
			t.Errorf("IdentityScope = %v, want per_platform", cfg.IdentityScope)
		}
		if cfg.PollerEnabled {
			t.Error("PollerEnabled = true, want false by default")
		}
	})

	t.Run("validation error when PIPELINE_MAX_ATTEMPTS <= 0", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-api-key")
		t.Setenv("PIPELINE_MAX_ATTEMPTS", "0")

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for PIPELINE_MAX_ATTEMPTS <= 0")
		}
	})

	t.Run("rejects an unknown identity scope", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-api-key")
		t.Setenv("CONTENT_IDENTITY_SCOPE", "global")

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for unknown CONTENT_IDENTITY_SCOPE")
		}
	})

	t.Run("accepts cross_platform scope", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-api-key")
		t.Setenv("CONTENT_IDENTITY_SCOPE", "cross_platform")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.IdentityScope != models.IdentityScopeCrossPlatform {
			t.Errorf("IdentityScope = %v, want cross_platform", cfg.IdentityScope)
		}
	})
}
