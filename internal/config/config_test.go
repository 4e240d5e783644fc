package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

var envKeys = []string{
	"PORT", "LOG_FILE", "LOG_BACKEND", "DATABASE_URL", "SQLITE_PATH", "NOTIFY_CHANNEL",
	"PHRASES_FILE", "STRICT_CONFIG", "MEDFOLLOW_CONFIG", "OPENAI_API_KEY", "OPENAI_BASE_URL",
	"OPENAI_MODEL_CHAT", "OPENAI_MAX_TOKENS", "OPENAI_TEMPERATURE", "OPENAI_RATE_PER_MIN",
	"OPENAI_TIMEOUT", "IVR_CHOICE_TIMEOUT", "IVR_COMMAND", "TERMINAL_COMMANDS", "TTS_COMMAND",
	"TTS_FALLBACK_COMMAND", "RINGTONE_COMMAND",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.LogFile != "responses.txt" || cfg.LogBackend != BackendFile {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" || cfg.OpenAI.MaxTokens != 300 || cfg.OpenAI.Temperature != 0.5 {
		t.Fatalf("unexpected openai defaults %+v", cfg.OpenAI)
	}
	if cfg.OpenAI.Timeout != 15*time.Second || cfg.OpenAI.RatePerMin != 60 {
		t.Fatalf("unexpected openai limits %+v", cfg.OpenAI)
	}
	if cfg.IVR.ChoiceTimeout != 0 || len(cfg.IVR.TerminalCommands) != 3 {
		t.Fatalf("unexpected ivr defaults %+v", cfg.IVR)
	}
	if cfg.NotifyChannel != "doctor_alerts" {
		t.Fatalf("notify channel %q", cfg.NotifyChannel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", ":9090")
	t.Setenv("LOG_BACKEND", "SQLite")
	t.Setenv("OPENAI_MAX_TOKENS", "99999")
	t.Setenv("OPENAI_TEMPERATURE", "0.2")
	t.Setenv("IVR_CHOICE_TIMEOUT", "30")
	t.Setenv("TERMINAL_COMMANDS", "kitty -- {ivr} {patient} {language}; ;xterm -e {ivr}")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.LogBackend != BackendSQLite {
		t.Fatalf("unexpected %+v", cfg)
	}
	if cfg.OpenAI.MaxTokens != 4096 {
		t.Fatalf("max tokens not clamped: %d", cfg.OpenAI.MaxTokens)
	}
	if cfg.OpenAI.Temperature != float32(0.2) {
		t.Fatalf("temperature %v", cfg.OpenAI.Temperature)
	}
	if cfg.IVR.ChoiceTimeout != 30*time.Second {
		t.Fatalf("choice timeout %v", cfg.IVR.ChoiceTimeout)
	}
	want := []string{"kitty -- {ivr} {patient} {language}", "xterm -e {ivr}"}
	if !reflect.DeepEqual(cfg.IVR.TerminalCommands, want) {
		t.Fatalf("terminal commands %q", cfg.IVR.TerminalCommands)
	}
}

func TestLoadInvalidNumbers(t *testing.T) {
	tests := []struct {
		name    string
		strict  string
		wantErr bool
	}{
		{"lenient", "", false},
		{"strict", "true", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("STRICT_CONFIG", tc.strict)
			t.Setenv("OPENAI_MAX_TOKENS", "lots")
			t.Setenv("OPENAI_TIMEOUT", "soon")
			cfg, err := Load()
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && (cfg.OpenAI.MaxTokens != 300 || cfg.OpenAI.Timeout != 15*time.Second) {
				t.Fatalf("defaults not applied: %+v", cfg.OpenAI)
			}
		})
	}
}

func TestLoadValidatesBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_BACKEND", "postgres")
	if _, err := Load(); err == nil {
		t.Fatalf("postgres without DATABASE_URL should fail")
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/medfollow")
	if _, err := Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Setenv("LOG_BACKEND", "mongo")
	if _, err := Load(); err == nil {
		t.Fatalf("unknown backend should fail")
	}
}

func TestLoadFileConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "medfollow.yaml")
	data := []byte(`
port: "7000"
log_file: /var/log/medfollow/responses.txt
openai:
  model: gpt-4o
  max_tokens: 150
ivr:
  choice_timeout: 45s
  terminal_commands:
    - "foot -- {ivr} {patient} {language}"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MEDFOLLOW_CONFIG", path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7100" {
		t.Fatalf("env should win over file, got %s", cfg.Port)
	}
	if cfg.LogFile != "/var/log/medfollow/responses.txt" || cfg.OpenAI.Model != "gpt-4o" || cfg.OpenAI.MaxTokens != 150 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.IVR.ChoiceTimeout != 45*time.Second || len(cfg.IVR.TerminalCommands) != 1 {
		t.Fatalf("ivr file values not applied: %+v", cfg.IVR)
	}
}

func TestLoadMissingFileConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEDFOLLOW_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err != nil {
		t.Fatalf("missing file should be tolerated: %v", err)
	}
	t.Setenv("STRICT_CONFIG", "1")
	if _, err := Load(); err == nil {
		t.Fatalf("missing file should fail in strict mode")
	}
}
