// Package config loads service settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Log backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

const (
	defaultPort          = "8080"
	defaultLogFile       = "responses.txt"
	defaultSQLitePath    = "medfollow.db"
	defaultNotifyChannel = "doctor_alerts"
	defaultModel         = "gpt-4o-mini"
	defaultMaxTokens     = 300
	defaultTemperature   = 0.5
	defaultRatePerMin    = 60
	defaultLLMTimeout    = 15 * time.Second
	defaultIVRCommand    = "ivr"
	defaultTTSCommand    = "edge-playback --voice {voice} --text {text}"
	defaultTTSFallback   = "espeak-ng -v {lang} {text}"
)

var defaultTerminalCommands = []string{
	"gnome-terminal -- {ivr} {patient} {language}",
	"xterm -e {ivr} {patient} {language}",
	"x-terminal-emulator -e {ivr} {patient} {language}",
}

// Config holds every setting used by the binaries.
type Config struct {
	Port          string
	LogFile       string
	LogBackend    string
	DatabaseURL   string
	SQLitePath    string
	NotifyChannel string
	PhrasesFile   string
	StrictConfig  bool
	OpenAI        OpenAIConfig
	IVR           IVRConfig
}

// OpenAIConfig configures the remote guidance backend.  An empty APIKey
// disables it.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	RatePerMin  int
	Timeout     time.Duration
}

// IVRConfig configures call launching and the call's output channels.
type IVRConfig struct {
	ChoiceTimeout      time.Duration
	Command            string
	TerminalCommands   []string
	TTSCommand         string
	TTSFallbackCommand string
	RingtoneCommand    string
}

type fileConfig struct {
	Port          string `yaml:"port"`
	LogFile       string `yaml:"log_file"`
	LogBackend    string `yaml:"log_backend"`
	DatabaseURL   string `yaml:"database_url"`
	SQLitePath    string `yaml:"sqlite_path"`
	NotifyChannel string `yaml:"notify_channel"`
	PhrasesFile   string `yaml:"phrases_file"`
	OpenAI        struct {
		Model       string   `yaml:"model"`
		BaseURL     string   `yaml:"base_url"`
		MaxTokens   *int     `yaml:"max_tokens"`
		Temperature *float64 `yaml:"temperature"`
		RatePerMin  *int     `yaml:"rate_per_min"`
		Timeout     string   `yaml:"timeout"`
	} `yaml:"openai"`
	IVR struct {
		ChoiceTimeout      string   `yaml:"choice_timeout"`
		Command            string   `yaml:"command"`
		TerminalCommands   []string `yaml:"terminal_commands"`
		TTSCommand         string   `yaml:"tts_command"`
		TTSFallbackCommand string   `yaml:"tts_fallback_command"`
		RingtoneCommand    string   `yaml:"ringtone_command"`
	} `yaml:"ivr"`
}

// Load reads .env (if present), then environment variables, then the YAML
// file named by MEDFOLLOW_CONFIG.  Environment values win over file values.
// Invalid numbers fall back to defaults with a log line, or fail the load
// when STRICT_CONFIG is set.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{StrictConfig: parseBoolEnv("STRICT_CONFIG")}

	var fc fileConfig
	if path := os.Getenv("MEDFOLLOW_CONFIG"); path != "" {
		loaded, err := loadFileConfig(path)
		if err != nil {
			if cfg.StrictConfig {
				return cfg, fmt.Errorf("config load failed (%s): %w", path, err)
			}
			log.Printf("config load failed (%s): %v (using defaults)", path, err)
		}
		fc = loaded
	}

	cfg.Port = strings.TrimPrefix(firstNonEmpty(os.Getenv("PORT"), fc.Port, defaultPort), ":")
	cfg.LogFile = firstNonEmpty(os.Getenv("LOG_FILE"), fc.LogFile, defaultLogFile)
	cfg.LogBackend = strings.ToLower(firstNonEmpty(os.Getenv("LOG_BACKEND"), fc.LogBackend, BackendFile))
	cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), fc.DatabaseURL)
	cfg.SQLitePath = firstNonEmpty(os.Getenv("SQLITE_PATH"), fc.SQLitePath, defaultSQLitePath)
	cfg.NotifyChannel = firstNonEmpty(os.Getenv("NOTIFY_CHANNEL"), fc.NotifyChannel, defaultNotifyChannel)
	cfg.PhrasesFile = firstNonEmpty(os.Getenv("PHRASES_FILE"), fc.PhrasesFile)

	cfg.OpenAI = OpenAIConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: firstNonEmpty(os.Getenv("OPENAI_BASE_URL"), fc.OpenAI.BaseURL),
		Model:   firstNonEmpty(os.Getenv("OPENAI_MODEL_CHAT"), fc.OpenAI.Model, defaultModel),
	}
	var errs []error
	cfg.OpenAI.MaxTokens = clampInt(cfg.intSetting("OPENAI_MAX_TOKENS", fc.OpenAI.MaxTokens, defaultMaxTokens, &errs), 1, 4096)
	cfg.OpenAI.RatePerMin = clampInt(cfg.intSetting("OPENAI_RATE_PER_MIN", fc.OpenAI.RatePerMin, defaultRatePerMin, &errs), 1, 6000)
	cfg.OpenAI.Temperature = float32(clampFloat(cfg.floatSetting("OPENAI_TEMPERATURE", fc.OpenAI.Temperature, defaultTemperature, &errs), 0, 2))
	cfg.OpenAI.Timeout = cfg.durationSetting("OPENAI_TIMEOUT", fc.OpenAI.Timeout, defaultLLMTimeout, &errs)

	cfg.IVR = IVRConfig{
		Command:            firstNonEmpty(os.Getenv("IVR_COMMAND"), fc.IVR.Command, defaultIVRCommand),
		TTSCommand:         firstNonEmpty(os.Getenv("TTS_COMMAND"), fc.IVR.TTSCommand, defaultTTSCommand),
		TTSFallbackCommand: firstNonEmpty(os.Getenv("TTS_FALLBACK_COMMAND"), fc.IVR.TTSFallbackCommand, defaultTTSFallback),
		RingtoneCommand:    firstNonEmpty(os.Getenv("RINGTONE_COMMAND"), fc.IVR.RingtoneCommand),
		ChoiceTimeout:      cfg.durationSetting("IVR_CHOICE_TIMEOUT", fc.IVR.ChoiceTimeout, 0, &errs),
	}
	switch {
	case os.Getenv("TERMINAL_COMMANDS") != "":
		cfg.IVR.TerminalCommands = splitList(os.Getenv("TERMINAL_COMMANDS"))
	case len(fc.IVR.TerminalCommands) > 0:
		cfg.IVR.TerminalCommands = fc.IVR.TerminalCommands
	default:
		cfg.IVR.TerminalCommands = append([]string(nil), defaultTerminalCommands...)
	}

	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	switch cfg.LogBackend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("LOG_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown LOG_BACKEND %q (want file, sqlite or postgres)", cfg.LogBackend)
	}
	if cfg.IVR.ChoiceTimeout < 0 {
		return errors.New("IVR_CHOICE_TIMEOUT must not be negative")
	}
	return nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if len(data) == 0 {
		return fc, errors.New("empty config file")
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, err
	}
	return fc, nil
}

// invalid records a bad value: an error in strict mode, a log line otherwise.
func (c Config) invalid(key, raw string, def any, err error, errs *[]error) {
	if c.StrictConfig {
		*errs = append(*errs, fmt.Errorf("invalid %s=%q: %w", key, raw, err))
		return
	}
	log.Printf("invalid %s=%q, using default %v", key, raw, def)
}

func (c Config) intSetting(key string, file *int, def int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		if file != nil {
			return *file
		}
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.invalid(key, raw, def, err, errs)
		return def
	}
	return v
}

func (c Config) floatSetting(key string, file *float64, def float64, errs *[]error) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		if file != nil {
			return *file
		}
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.invalid(key, raw, def, err, errs)
		return def
	}
	return v
}

// durationSetting accepts Go durations ("15s") and bare seconds ("15").
func (c Config) durationSetting(key, file string, def time.Duration, errs *[]error) time.Duration {
	raw := firstNonEmpty(strings.TrimSpace(os.Getenv(key)), file)
	if raw == "" {
		return def
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		c.invalid(key, raw, def, err, errs)
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
