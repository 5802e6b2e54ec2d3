package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestDecodeConfig_Defaults(t *testing.T) {
	v := viper.New()
	configure(v)

	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}
	def := model.DefaultConfig()
	if cfg.Server.Port != def.Server.Port || cfg.Retention.MediaTTL != def.Retention.MediaTTL {
		t.Errorf("defaults not applied: %+v", cfg.Server)
	}
	if len(cfg.CORS.AllowedOrigins) != len(def.CORS.AllowedOrigins) {
		t.Errorf("origins = %v", cfg.CORS.AllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestDecodeConfig_Environment(t *testing.T) {
	t.Setenv("DEEPGUARD_SERVER_PORT", "9100")
	t.Setenv("DEEPGUARD_RETENTION_MEDIA_TTL", "30m")
	t.Setenv("DEEPGUARD_STORE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "/tmp/deepguard.db")
	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MAX_UPLOAD_SIZE", "1048576")

	v := viper.New()
	configure(v)
	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Retention.MediaTTL != 30*time.Minute {
		t.Errorf("media ttl = %v", cfg.Retention.MediaTTL)
	}
	if cfg.Store.Driver != model.DriverSQLite || cfg.Store.DSN != "/tmp/deepguard.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.SecretKey != "from-env" {
		t.Errorf("secret key not read from SECRET_KEY")
	}
	if cfg.Upload.MaxBytes != 1048576 {
		t.Errorf("max bytes = %d", cfg.Upload.MaxBytes)
	}
	want := []string{"https://a.example", "https://b.example"}
	if strings.Join(cfg.CORS.AllowedOrigins, "|") != strings.Join(want, "|") {
		t.Errorf("origins = %v, want %v", cfg.CORS.AllowedOrigins, want)
	}
}

func TestDecodeConfig_PrefixedBeatsBare(t *testing.T) {
	t.Setenv("DEEPGUARD_SECRET_KEY", "prefixed")
	t.Setenv("SECRET_KEY", "bare")

	v := viper.New()
	configure(v)
	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SecretKey != "prefixed" {
		t.Errorf("secret key = %q, want the DEEPGUARD_ value", cfg.SecretKey)
	}
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deepguard", "config.yaml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected refusal to overwrite")
	}

	v := viper.New()
	configure(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("read written config: %v", err)
	}
	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retention.VerdictTTL != model.DefaultConfig().Retention.VerdictTTL {
		t.Errorf("verdict ttl = %v", cfg.Retention.VerdictTTL)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "media_ttl: 1h0m0s") {
		t.Errorf("durations should be written in Go syntax:\n%s", data)
	}
}

func TestDisplayConfig_MasksSecrets(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.SecretKey = "hunter2"
	cfg.LLM.APIKey = "sk-test"

	data, err := yaml.Marshal(displayConfig(cfg, true))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "hunter2") || strings.Contains(out, "sk-test") {
		t.Errorf("secrets leaked:\n%s", out)
	}
	if !strings.Contains(out, "********") {
		t.Errorf("expected masked values:\n%s", out)
	}
}

func TestReportName(t *testing.T) {
	tests := []struct {
		path, id, want string
	}{
		{"/data/portrait.jpg", "0123456789abcdef", "portrait-01234567"},
		{"clips/my clip:1.mp4", "abc", "my-clip_1-abc"},
	}
	for _, tt := range tests {
		if got := reportName(tt.path, tt.id); got != tt.want {
			t.Errorf("reportName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
