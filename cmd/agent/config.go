package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/Chichichkin/LogentriesAgent/internal/logging"
)

type AppConfig struct {
	Token        string        `yaml:"token"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	TLSPort      int           `yaml:"tls_port"`
	UseTLS       bool          `yaml:"use_tls"`
	CABundlePath string        `yaml:"ca_bundle"`
	Verbose      bool          `yaml:"verbose"`
	FlushTimeout time.Duration `yaml:"flush_timeout"`
	QueueSize    int           `yaml:"queue_size"`
	QueuePolicy  string        `yaml:"queue_policy"`
	MinDelay     time.Duration `yaml:"min_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Level        string        `yaml:"level"`

	LogRootPath     string        `yaml:"log_path"`
	FileSuffix      string        `yaml:"file_suffix"`
	ScanInterval    time.Duration `yaml:"scan_interval"`
	MaxOpenFiles    int           `yaml:"max_open_files"`
	NodeName        string        `yaml:"node_name"`
	FromStart       bool          `yaml:"from_start"`
	Poll            bool          `yaml:"poll"`
	FileIdleTimeout time.Duration `yaml:"file_idle_timeout"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// loadConfig layers environment defaults, an optional YAML file and command
// line flags, later sources winning.
func loadConfig(args []string) (AppConfig, error) {
	config := getConfig()

	flags := pflag.NewFlagSet("agent", pflag.ContinueOnError)
	configPath := flags.String("config", getEnv("AGENT_CONFIG", ""), "path to a YAML config file")
	token := flags.String("token", "", "Logentries account token")
	logPath := flags.String("log-path", "", "root directory scanned for log files")
	metricsAddr := flags.String("metrics-addr", "", "listen address for /metrics")
	useTLS := flags.Bool("tls", false, "connect over TLS")
	verbose := flags.BoolP("verbose", "v", false, "print LE diagnostics to stderr")

	if err := flags.Parse(args); err != nil {
		return config, err
	}

	if *configPath != "" {
		if err := mergeConfigFile(&config, *configPath); err != nil {
			return config, err
		}
	}

	if flags.Changed("token") {
		config.Token = *token
	}
	if flags.Changed("log-path") {
		config.LogRootPath = *logPath
	}
	if flags.Changed("metrics-addr") {
		config.MetricsAddr = *metricsAddr
	}
	if flags.Changed("tls") {
		config.UseTLS = *useTLS
	}
	if flags.Changed("verbose") {
		config.Verbose = *verbose
	}

	return config, nil
}

func mergeConfigFile(config *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c AppConfig) Logentries() logging.Config {
	config := logging.DefaultConfig(c.Token)
	config.Host = c.Host
	config.Port = c.Port
	config.TLSPort = c.TLSPort
	config.UseTLS = c.UseTLS
	config.CABundlePath = c.CABundlePath
	config.Verbose = c.Verbose
	config.FlushTimeout = c.FlushTimeout
	config.QueueSize = c.QueueSize
	config.QueuePolicy = logging.QueuePolicy(c.QueuePolicy)
	config.MinDelay = c.MinDelay
	config.MaxDelay = c.MaxDelay
	config.WriteTimeout = c.WriteTimeout
	return config
}

func (c AppConfig) slogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func getConfig() AppConfig {
	return AppConfig{
		Token:        getEnv("LOGENTRIES_TOKEN", ""),
		Host:         getEnv("LOGENTRIES_HOST", logging.DefaultHost),
		Port:         getEnvAsInt("LOGENTRIES_PORT", logging.DefaultPort),
		TLSPort:      getEnvAsInt("LOGENTRIES_TLS_PORT", logging.DefaultTLSPort),
		UseTLS:       getEnvAsBool("LOGENTRIES_USE_TLS", false),
		CABundlePath: getEnv("LOGENTRIES_CA_BUNDLE", ""),
		Verbose:      getEnvAsBool("LOGENTRIES_VERBOSE", false),
		FlushTimeout: getEnvAsDuration("FLUSH_TIMEOUT", logging.DefaultFlushTimeout),
		QueueSize:    getEnvAsInt("QUEUE_SIZE", logging.DefaultQueueSize),
		QueuePolicy:  getEnv("QUEUE_POLICY", string(logging.PolicyBlock)),
		MinDelay:     getEnvAsDuration("RECONNECT_MIN_DELAY", logging.DefaultMinDelay),
		MaxDelay:     getEnvAsDuration("RECONNECT_MAX_DELAY", logging.DefaultMaxDelay),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 0),
		Level:        getEnv("LOG_LEVEL", "DEBUG"),

		LogRootPath:     getEnv("LOG_PATH", "/var/log"),
		FileSuffix:      getEnv("FILE_SUFFIX", ".log"),
		ScanInterval:    getEnvAsDuration("SCAN_INTERVAL", 30*time.Second),
		MaxOpenFiles:    getEnvAsInt("MAX_OPEN_FILES", 256),
		NodeName:        getEnv("NODE_NAME", hostname()),
		FromStart:       getEnvAsBool("FROM_START", false),
		Poll:            getEnvAsBool("POLL", true),
		FileIdleTimeout: getEnvAsDuration("FILE_IDLE_TIMEOUT", 5*time.Minute),

		MetricsAddr: getEnv("METRICS_ADDR", ":9102"),
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
