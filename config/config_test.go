package config_test // Use an external test package

import (
	"testing"
	"time"

	"clipforge/config"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		// Ensure no env vars are lingering from other tests
		t.Setenv("CLIPFORGE_PORT", "")
		t.Setenv("CLIPFORGE_MAX_CONCURRENCY", "")
		t.Setenv("CLIPFORGE_AUTH_ENABLE", "")
		t.Setenv("CLIPFORGE_FF_TIMEOUT", "")
		t.Setenv("CLIPFORGE_THROTTLE_FREEMEM", "")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, 2, cfg.MaxConcurrency)
		assert.Equal(t, false, cfg.AuthEnable)
		assert.Equal(t, "ffmpeg", cfg.FFBin)
		assert.Equal(t, "ffprobe", cfg.FFProbeBin)
		assert.Equal(t, 15*time.Minute, cfg.FFTimeout)
		assert.Equal(t, 600, cfg.SegmentSeconds)
		assert.Equal(t, 5, cfg.AIMaxAttempts)
		assert.Equal(t, 5*time.Second, cfg.AIBackoffMin)
		assert.Equal(t, int64(200*1024*1024), cfg.ThrottleFreeMem)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("CLIPFORGE_PORT", "9999")
		t.Setenv("CLIPFORGE_MAX_CONCURRENCY", "10")
		t.Setenv("CLIPFORGE_AUTH_ENABLE", "true")
		t.Setenv("CLIPFORGE_AUTH_KEY", "newsecret")
		t.Setenv("CLIPFORGE_STORE_BUCKET", "media-lab")
		t.Setenv("CLIPFORGE_THROTTLE_FREEDISK", "1GB")
		t.Setenv("CLIPFORGE_FACEREC_URL", "http://faces:8001")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, 10, cfg.MaxConcurrency)
		assert.Equal(t, true, cfg.AuthEnable)
		assert.Equal(t, "newsecret", cfg.AuthKey)
		assert.Equal(t, "media-lab", cfg.StoreBucket)
		assert.Equal(t, int64(1024*1024*1024), cfg.ThrottleFreeDisk)
		assert.Equal(t, "http://faces:8001", cfg.FaceRecURL)
	})
}
