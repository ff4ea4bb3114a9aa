package app

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

var allConfigEnvVars = []string{
	"LOG_LEVEL", "LOG_FORMAT",
	"GATEWAY_KIND", "GATEWAY_URL", "GATEWAY_TOKEN",
	"DOWNLOADER_KIND", "ARIA2_RPC_URL", "ARIA2_SECRET", "DOWNLOAD_BASE_DIR",
	"SCHEDULER_TICK", "TORRENT_CONCURRENCY", "FILE_DOWNLOAD_CONCURRENCY",
	"SCHEDULER_PROMOTION_RATE_LIMIT",
	"BOLT_PATH", "TASK_STORE_MONGO_URI", "MONGO_DB",
	"CREDENTIALS_PATH",
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t, allConfigEnvVars...)

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"GatewayKind", cfg.GatewayKind, "memory"},
		{"GatewayURL", cfg.GatewayURL, ""},
		{"DownloaderKind", cfg.DownloaderKind, "memory"},
		{"Aria2RPCURL", cfg.Aria2RPCURL, "http://127.0.0.1:6800/jsonrpc"},
		{"DownloadBaseDir", cfg.DownloadBaseDir, "data"},
		{"SchedulerTick", cfg.SchedulerTick, time.Second},
		{"TorrentConcurrency", cfg.TorrentConcurrency, 3},
		{"FileDownloadConcurrency", cfg.FileDownloadConcurrency, 5},
		{"SchedulerPromotionRateLimit", cfg.SchedulerPromotionRateLimit, float64(0)},
		{"BoltPath", cfg.BoltPath, "data/tasks.db"},
		{"TaskStoreMongoURI", cfg.TaskStoreMongoURI, ""},
		{"MongoDatabase", cfg.MongoDatabase, "torrentstream"},
		{"CredentialsPath", cfg.CredentialsPath, "data/credentials.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t, allConfigEnvVars...)

	env := map[string]string{
		"LOG_LEVEL":                      "DEBUG",
		"LOG_FORMAT":                     "JSON",
		"GATEWAY_KIND":                   "HTTP",
		"GATEWAY_URL":                    "https://api.example.invalid",
		"GATEWAY_TOKEN":                  "secret",
		"DOWNLOADER_KIND":                "ARIA2",
		"ARIA2_RPC_URL":                  "http://aria2:6800/jsonrpc",
		"ARIA2_SECRET":                   "s3cr3t",
		"DOWNLOAD_BASE_DIR":              "/mnt/downloads",
		"SCHEDULER_TICK":                 "500ms",
		"TORRENT_CONCURRENCY":            "7",
		"FILE_DOWNLOAD_CONCURRENCY":      "20",
		"SCHEDULER_PROMOTION_RATE_LIMIT": "10.5",
		"BOLT_PATH":                      "/var/lib/app/tasks.db",
		"TASK_STORE_MONGO_URI":           "mongodb://remote:27017",
		"MONGO_DB":                       "mydb",
		"CREDENTIALS_PATH":               "/etc/app/creds.json",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"LogLevel", cfg.LogLevel, "debug"},
		{"LogFormat", cfg.LogFormat, "json"},
		{"GatewayKind", cfg.GatewayKind, "http"},
		{"GatewayURL", cfg.GatewayURL, "https://api.example.invalid"},
		{"GatewayToken", cfg.GatewayToken, "secret"},
		{"DownloaderKind", cfg.DownloaderKind, "aria2"},
		{"Aria2RPCURL", cfg.Aria2RPCURL, "http://aria2:6800/jsonrpc"},
		{"Aria2Secret", cfg.Aria2Secret, "s3cr3t"},
		{"DownloadBaseDir", cfg.DownloadBaseDir, "/mnt/downloads"},
		{"SchedulerTick", cfg.SchedulerTick, 500 * time.Millisecond},
		{"TorrentConcurrency", cfg.TorrentConcurrency, 7},
		{"FileDownloadConcurrency", cfg.FileDownloadConcurrency, 20},
		{"SchedulerPromotionRateLimit", cfg.SchedulerPromotionRateLimit, 10.5},
		{"BoltPath", cfg.BoltPath, "/var/lib/app/tasks.db"},
		{"TaskStoreMongoURI", cfg.TaskStoreMongoURI, "mongodb://remote:27017"},
		{"MongoDatabase", cfg.MongoDatabase, "mydb"},
		{"CredentialsPath", cfg.CredentialsPath, "/etc/app/creds.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}
}

func TestGetEnvInt64InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback int64
		want     int64
	}{
		{"empty string", "", 42, 42},
		{"not a number", "abc", 42, 42},
		{"negative number", "-5", 42, 42},
		{"zero", "0", 42, 0},
		{"valid positive", "100", 42, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_VAR", tt.envVal)
			got := getEnvInt64("TEST_INT_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvInt64(%q, %d) = %d, want %d", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetEnvDurationInvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback time.Duration
		want     time.Duration
	}{
		{"empty string", "", time.Second, time.Second},
		{"not a duration", "soon", time.Second, time.Second},
		{"zero", "0s", time.Second, time.Second},
		{"valid", "2m", time.Second, 2 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION_VAR", tt.envVal)
			got := getEnvDuration("TEST_DURATION_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvDuration(%q, %v) = %v, want %v", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetEnvFallback(t *testing.T) {
	t.Setenv("TEST_EXISTING", "hello")
	if got := getEnv("TEST_EXISTING", "default"); got != "hello" {
		t.Errorf("getEnv(existing) = %q, want %q", got, "hello")
	}

	t.Setenv("TEST_MISSING_XYZ", "")
	os.Unsetenv("TEST_MISSING_XYZ")
	if got := getEnv("TEST_MISSING_XYZ", "default"); got != "default" {
		t.Errorf("getEnv(missing) = %q, want %q", got, "default")
	}
}
