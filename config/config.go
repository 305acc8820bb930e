// Package config builds the single immutable configuration object the rest
// of the core is constructed from, the way the teacher's common package
// builds hosts-and-ports and temporal settings: thin os.Getenv accessors with
// defaults, plus an optional file-based overlay for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LLMProvider selects the LLMClient backend.
type LLMProvider string

const (
	LLMProviderMock     LLMProvider = "mock"
	LLMProviderOpenAI   LLMProvider = "openai"
	LLMProviderAzure    LLMProvider = "azure"
	LLMProviderAnthropic LLMProvider = "anthropic"
)

// LogFormat selects the zerolog writer.
type LogFormat string

const (
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

// Config is built once at process startup and never mutated afterwards.
type Config struct {
	Debug bool
	Host  string
	Port  int

	DBURL         string
	DBUser        string
	DBPassword    string
	DBNamespace   string
	DBDatabase    string

	LLMProvider LLMProvider
	LLMAPIKey   string
	LLMAPIURL   string
	LLMModel    string

	MaxContextLength     int
	ResponseWindow       time.Duration
	SessionIdleThreshold time.Duration

	LogLevel  int
	LogFile   string
	LogFormat LogFormat

	CORSOrigins []string

	ToolTimeout      time.Duration
	MaxToolLoopDepth int
	WSClientQueueSize int
	PipelineDeadline time.Duration
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s as int: %s", key, v))
	}
	return n
}

func getEnvString(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// loadDotenv best-effort loads a .env file into the process environment
// before reading config, matching the teacher's local-dev convenience; a
// missing file is not an error.
func loadDotenv() {
	_ = godotenv.Load()
}

// LoadOverridesFile loads a TOML/YAML/JSON overrides file (selected by
// extension) into a fresh koanf instance and returns it. This is the
// file-based overlay mentioned in SPEC_FULL.md; it does not apply any key
// onto a Config, and Load does not call it.
func LoadOverridesFile(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	var parser koanf.Parser
	switch {
	case strings.HasSuffix(path, ".toml"):
		parser = toml.Parser()
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		parser = yaml.Parser()
	case strings.HasSuffix(path, ".json"):
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config overrides extension: %s", path)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading config overrides: %w", err)
	}
	return k, nil
}

// Load builds the Config from environment variables, following the
// enumerated list in SPEC_FULL.md §6.4.
func Load() *Config {
	loadDotenv()

	c := &Config{
		Debug: getEnvBool("DEBUG", false),
		Host:  getEnvString("HOST", "0.0.0.0"),
		Port:  getEnvInt("PORT", 8080),

		DBURL:       getEnvString("DB_URL", "memory"),
		DBUser:      getEnvString("DB_USER", ""),
		DBPassword:  getEnvString("DB_PASSWORD", ""),
		DBNamespace: getEnvString("DB_NAMESPACE", ""),
		DBDatabase:  getEnvString("DB_DATABASE", ""),

		LLMProvider: LLMProvider(getEnvString("LLM_PROVIDER", string(LLMProviderMock))),
		LLMAPIKey:   getEnvString("LLM_API_KEY", ""),
		LLMAPIURL:   getEnvString("LLM_API_URL", ""),
		LLMModel:    getEnvString("LLM_MODEL", ""),

		MaxContextLength:     getEnvInt("MAX_CONTEXT_LENGTH", 4000),
		ResponseWindow:       time.Duration(getEnvInt("RESPONSE_WINDOW_HOURS", 3)) * time.Hour,
		SessionIdleThreshold: time.Duration(getEnvInt("SESSION_TIMEOUT_HOURS", 1)) * time.Hour,

		LogLevel:  getEnvInt("LOG_LEVEL", 1), // zerolog.InfoLevel
		LogFile:   getEnvString("LOG_FILE", ""),
		LogFormat: LogFormat(getEnvString("LOG_FORMAT", "")),

		ToolTimeout:       time.Duration(getEnvInt("TOOL_TIMEOUT_MS", 10000)) * time.Millisecond,
		MaxToolLoopDepth:  getEnvInt("MAX_TOOL_LOOP_DEPTH", 4),
		WSClientQueueSize: getEnvInt("WS_CLIENT_QUEUE_SIZE", 64),
		PipelineDeadline:  time.Duration(getEnvInt("PIPELINE_DEADLINE_MS", 120000)) * time.Millisecond,
	}

	if c.LogFormat == "" {
		if c.Debug {
			c.LogFormat = LogFormatConsole
		} else {
			c.LogFormat = LogFormatJSON
		}
	}

	origins := getEnvString("CORS_ORIGINS", "*")
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			c.CORSOrigins = append(c.CORSOrigins, o)
		}
	}

	return c
}
