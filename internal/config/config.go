package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names an optional YAML file layered between defaults and env.
const ConfigPathEnvVar = "CONFIG_PATH"

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	// LogFile, when set, receives a copy of every log line.
	LogFile  string
	HTTPAddr string

	// StaticDir overrides the embedded static assets served at /static/.
	// Relative paths are resolved against the process working directory at startup.
	StaticDir string

	DatasetPath   string
	DatasetFormat string
	DatasetWatch  bool
	SQLLog        bool

	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	MQTTEnabled  bool
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
}

// rawConfig is the koanf view of the configuration. Every value is kept as a
// string so env, YAML and defaults go through the same parsing below.
type rawConfig struct {
	AppEnv            string `koanf:"app_env"`
	LogLevel          string `koanf:"log_level"`
	LogFile           string `koanf:"log_file"`
	HTTPAddr          string `koanf:"http_addr"`
	StaticDir         string `koanf:"static_dir"`
	DatasetPath       string `koanf:"dataset_path"`
	DatasetFormat     string `koanf:"dataset_format"`
	DatasetWatch      string `koanf:"dataset_watch"`
	SQLLog            string `koanf:"sql_log"`
	CORSOrigins       string `koanf:"cors_origins"`
	RateLimitRequests string `koanf:"rate_limit_requests"`
	RateLimitWindow   string `koanf:"rate_limit_window"`
	MQTTEnabled       string `koanf:"mqtt_enabled"`
	MQTTBroker        string `koanf:"mqtt_broker"`
	MQTTPort          string `koanf:"mqtt_port"`
	MQTTClientID      string `koanf:"mqtt_client_id"`
	MQTTTopic         string `koanf:"mqtt_topic"`
}

func defaults() rawConfig {
	return rawConfig{
		AppEnv:            "dev",
		LogLevel:          "info",
		HTTPAddr:          ":8080",
		DatasetPath:       "pm25_data_final.parquet",
		DatasetWatch:      "false",
		SQLLog:            "false",
		CORSOrigins:       "*",
		RateLimitRequests: "0",
		RateLimitWindow:   "1m",
		MQTTEnabled:       "false",
		MQTTBroker:        "localhost",
		MQTTPort:          "1883",
		MQTTClientID:      "airquality-server",
		MQTTTopic:         "airquality/measurements",
	}
}

// LoadFromEnv layers defaults, the optional CONFIG_PATH YAML file and the
// process environment (highest priority), then validates the result.
func LoadFromEnv() (Config, error) {
	raw, err := load()
	if err != nil {
		return Config{}, err
	}
	return parse(raw)
}

func load() (rawConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return rawConfig{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return rawConfig{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// APP_ENV -> app_env. Unknown variables are loaded but never unmarshaled.
	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return rawConfig{}, fmt.Errorf("load environment: %w", err)
	}

	var raw rawConfig
	if err := k.Unmarshal("", &raw); err != nil {
		return rawConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return raw, nil
}

// envTransform lowercases the key and drops empty variables so they do not
// mask values from the config file.
func envTransform(key, value string) (string, any) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return strings.ToLower(key), value
}

func parse(raw rawConfig) (Config, error) {
	def := defaults()

	appEnv := orDefault(raw.AppEnv, def.AppEnv)
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(orDefault(raw.LogLevel, def.LogLevel))
	if err != nil {
		return Config{}, err
	}

	staticDir := strings.TrimSpace(raw.StaticDir)
	if staticDir != "" {
		staticDir, err = filepath.Abs(staticDir)
		if err != nil {
			return Config{}, fmt.Errorf("STATIC_DIR %q: %w", raw.StaticDir, err)
		}
	}

	datasetFormat := strings.ToLower(strings.TrimSpace(raw.DatasetFormat))
	switch datasetFormat {
	case "", "parquet", "sqlite":
	default:
		return Config{}, fmt.Errorf("invalid DATASET_FORMAT %q (allowed: parquet, sqlite)", raw.DatasetFormat)
	}

	datasetWatch, err := parseBool("DATASET_WATCH", orDefault(raw.DatasetWatch, def.DatasetWatch))
	if err != nil {
		return Config{}, err
	}
	sqlLog, err := parseBool("SQL_LOG", orDefault(raw.SQLLog, def.SQLLog))
	if err != nil {
		return Config{}, err
	}

	rateLimitStr := orDefault(raw.RateLimitRequests, def.RateLimitRequests)
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_REQUESTS %q: %w", rateLimitStr, err)
	}
	if rateLimit < 0 {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_REQUESTS %d (must be >= 0)", rateLimit)
	}

	windowStr := orDefault(raw.RateLimitWindow, def.RateLimitWindow)
	window, err := time.ParseDuration(windowStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_WINDOW %q: %w", windowStr, err)
	}
	if rateLimit > 0 && window <= 0 {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_WINDOW %q (must be > 0)", windowStr)
	}

	mqttEnabled, err := parseBool("MQTT_ENABLED", orDefault(raw.MQTTEnabled, def.MQTTEnabled))
	if err != nil {
		return Config{}, err
	}

	mqttPortStr := orDefault(raw.MQTTPort, def.MQTTPort)
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %d (must be 1-65535)", mqttPort)
	}

	return Config{
		AppEnv:            appEnv,
		LogLevel:          level,
		LogFile:           strings.TrimSpace(raw.LogFile),
		HTTPAddr:          orDefault(raw.HTTPAddr, def.HTTPAddr),
		StaticDir:         staticDir,
		DatasetPath:       orDefault(raw.DatasetPath, def.DatasetPath),
		DatasetFormat:     datasetFormat,
		DatasetWatch:      datasetWatch,
		SQLLog:            sqlLog,
		CORSOrigins:       splitList(orDefault(raw.CORSOrigins, def.CORSOrigins)),
		RateLimitRequests: rateLimit,
		RateLimitWindow:   window,
		MQTTEnabled:       mqttEnabled,
		MQTTBroker:        orDefault(raw.MQTTBroker, def.MQTTBroker),
		MQTTPort:          mqttPort,
		MQTTClientID:      orDefault(raw.MQTTClientID, def.MQTTClientID),
		MQTTTopic:         orDefault(raw.MQTTTopic, def.MQTTTopic),
	}, nil
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

func parseBool(name, s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return b, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
