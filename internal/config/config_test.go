package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no stray .env or
// config.yaml is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, ":5000", cfg.Address())
	assert.Equal(t, BackendONNX, cfg.Model.Backend)
	assert.Equal(t, FormatYOLO, cfg.Model.Format)
	assert.Equal(t, 0.5, cfg.Detector.DefaultThreshold)
	assert.Equal(t, 0.25, cfg.Detector.MinConfidence)
	assert.Equal(t, int64(16*1024*1024), cfg.Upload.MaxSize)
	assert.Equal(t, []string{"png", "jpg", "jpeg", "gif", "bmp"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Contains(t, cfg.CORS.AllowedOrigins, "https://*.onrender.com")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "9090")
	t.Setenv("MODEL_BACKEND", "REMOTE")
	t.Setenv("DETECTOR_WORKERS", "4")
	t.Setenv("DETECTOR_DEFAULT_THRESHOLD", "0.35")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("UPLOAD_ALLOWED_EXTENSIONS", ".PNG, jpg")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, BackendRemote, cfg.Model.Backend)
	assert.Equal(t, 4, cfg.Detector.Workers)
	assert.Equal(t, 0.35, cfg.Detector.DefaultThreshold)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"png", "jpg"}, cfg.Upload.AllowedExtensions)
}

func TestLoad_DotEnvAndYAML(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_DIR=/tmp/objectvision-logs\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
model:
  backend: opencv
  format: ssd
  name: SSD-MobileNet
detector:
  workers: 3
`), 0644))
	t.Cleanup(func() { os.Unsetenv("LOG_DIR") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/objectvision-logs", cfg.Log.Directory)
	assert.Equal(t, BackendOpenCV, cfg.Model.Backend)
	assert.Equal(t, FormatSSD, cfg.Model.Format)
	assert.Equal(t, "SSD-MobileNet", cfg.Model.Name)
	assert.Equal(t, 3, cfg.Detector.Workers)
}

func TestLoad_InvalidSettings(t *testing.T) {
	tests := map[string]map[string]string{
		"backend":   {"MODEL_BACKEND": "tensorflow"},
		"threshold": {"DETECTOR_DEFAULT_THRESHOLD": "1.5"},
		"workers":   {"DETECTOR_WORKERS": "0"},
		"onnx ssd":  {"MODEL_BACKEND": "onnx", "MODEL_FORMAT": "ssd"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			chdirTemp(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
