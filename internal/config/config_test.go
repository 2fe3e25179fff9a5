package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 5 * time.Second},
		{"90s", 90 * time.Second},
		{"2m", 2 * time.Minute},
		{"45", 45 * time.Second},
		{"soon", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_TIMEOUT", tt.value)
			if got := GetEnvDuration("TEST_TIMEOUT", 5*time.Second); got != tt.want {
				t.Errorf("GetEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "12")
	t.Setenv("TEST_BAD_INT", "twelve")
	t.Setenv("TEST_BOOL", "true")

	if got := GetEnv("TEST_STR", "x"); got != "value" {
		t.Errorf("GetEnv = %q", got)
	}
	if got := GetEnv("TEST_UNSET_STR", "x"); got != "x" {
		t.Errorf("GetEnv fallback = %q", got)
	}
	if got := GetEnvInt("TEST_INT", 1); got != 12 {
		t.Errorf("GetEnvInt = %d", got)
	}
	if got := GetEnvInt("TEST_BAD_INT", 1); got != 1 {
		t.Errorf("GetEnvInt invalid = %d", got)
	}
	if got := GetEnvBool("TEST_BOOL", false); !got {
		t.Error("GetEnvBool = false")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"THUMBNAIL_TIMEOUT", "PREVIEW_TIMEOUT", "SPRITESHEET_TIMEOUT", "CACHE_CONTROL", "STORAGE_BACKEND"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	if cfg.ThumbnailTimeout != 300*time.Second || cfg.PreviewTimeout != 300*time.Second {
		t.Errorf("thumbnail/preview timeouts = %v/%v", cfg.ThumbnailTimeout, cfg.PreviewTimeout)
	}
	if cfg.SpriteSheetTimeout != 540*time.Second {
		t.Errorf("sprite timeout = %v", cfg.SpriteSheetTimeout)
	}
	if cfg.CacheControl != "public,max-age=31536000" {
		t.Errorf("CacheControl = %q", cfg.CacheControl)
	}
	if cfg.StorageBackend != "filesystem" {
		t.Errorf("StorageBackend = %q", cfg.StorageBackend)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PIPELINE_TEST_FROM_DOTENV=loaded\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("PIPELINE_TEST_FROM_DOTENV") })

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("PIPELINE_TEST_FROM_DOTENV"); got != "loaded" {
		t.Errorf("env = %q", got)
	}
}
