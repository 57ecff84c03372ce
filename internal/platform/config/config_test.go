package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 0.9, cfg.Deduplication.DuplicateThreshold)
	assert.Equal(t, 0.6, cfg.Deduplication.SimilarityThreshold)
	assert.Equal(t, uint64(3), cfg.Biometric.MaxRetries)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9100"
biometric:
  base_url: "https://engine.example.org/api/"
  timeout: 45s
kafka:
  brokers: ["kafka-1:9092"]
deduplication:
  upload_concurrency: 8
`)
	t.Setenv("HOPE_KAFKA_BROKERS", "kafka-2:9092, kafka-3:9092")
	t.Setenv("HOPE_SIMILARITY_THRESHOLD", "0.7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "https://engine.example.org/api/", cfg.Biometric.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Biometric.Timeout)
	assert.Equal(t, []string{"kafka-2:9092", "kafka-3:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 0.7, cfg.Deduplication.SimilarityThreshold)
	assert.Equal(t, 8, cfg.Deduplication.UploadConcurrency)
	assert.Equal(t, "hope.dedup.jobs", cfg.Kafka.JobsTopic)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]func(t *testing.T) string{
		"missing file": func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.yaml") },
		"bad yaml":     func(t *testing.T) string { return writeFile(t, "server: [") },
		"inverted thresholds": func(t *testing.T) string {
			return writeFile(t, "deduplication:\n  duplicate_threshold: 0.5\n  similarity_threshold: 0.8\n")
		},
		"unknown exporter": func(t *testing.T) string { return writeFile(t, "tracing:\n  exporter: zipkin\n") },
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(path(t))
			assert.Error(t, err)
		})
	}
}

func TestEnvParseErrors(t *testing.T) {
	t.Setenv("HOPE_BIOMETRIC_TIMEOUT", "soon")
	_, err := Load("")
	assert.ErrorContains(t, err, "HOPE_BIOMETRIC_TIMEOUT")
}
