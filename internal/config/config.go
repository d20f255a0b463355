package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера мира
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Settings  SettingsConfig  `yaml:"settings"`
	Counter   CounterConfig   `yaml:"counter"`
	Reports   ReportsConfig   `yaml:"reports"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type WorldConfig struct {
	MapName         string  `yaml:"map_name"`
	Width           int     `yaml:"width"`  // в тайлах
	Height          int     `yaml:"height"` // в тайлах
	TickRate        int     `yaml:"tick_rate"`
	Seed            int64   `yaml:"seed"`
	WanderingNPCs   int     `yaml:"wandering_npcs"`
	AutosaveSeconds float64 `yaml:"autosave_seconds"`
}

// SettingsConfig флаги античита, меняются без перезапуска мира
type SettingsConfig struct {
	LogLagging        bool `yaml:"log_lagging"`
	KickLagging       bool `yaml:"kick_lagging"`
	LogTeleporting    bool `yaml:"log_teleporting"`
	KickTeleporting   bool `yaml:"kick_teleporting"`
	FixTeleporting    bool `yaml:"fix_teleporting"`
	ReportTeleporting bool `yaml:"report_teleporting"`
	TeleportLimit     int  `yaml:"teleport_limit"`
}

type CounterConfig struct {
	Backend       string `yaml:"backend"` // memory | redis
	RedisAddr     string `yaml:"redis_addr"`
	WindowSeconds int    `yaml:"window_seconds"`
}

type ReportsConfig struct {
	Backend string `yaml:"backend"` // log | nats
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

type StorageConfig struct {
	Path string `yaml:"path"` // пусто - тайлы не сохраняются
}

type ServerConfig struct {
	AdminPort int `yaml:"admin_port"`
	// AdminSecret ключ подписи токенов операторов в base64.
	// Пусто - изменяющие маршруты API открыты.
	AdminSecret string `yaml:"admin_secret"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
	MaxSizeMB    int    `yaml:"max_size_mb"`
	MaxBackups   int    `yaml:"max_backups"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"` // пусто - трассировка выключена
	Insecure     bool   `yaml:"insecure"`
}

// Default конфигурация для локального запуска
func Default() *Config {
	return &Config{
		World: WorldConfig{
			MapName:         "main",
			Width:           128,
			Height:          128,
			TickRate:        20,
			Seed:            1,
			WanderingNPCs:   8,
			AutosaveSeconds: 60,
		},
		Settings: SettingsConfig{
			LogLagging:     true,
			LogTeleporting: true,
			FixTeleporting: true,
			TeleportLimit:  3,
		},
		Counter: CounterConfig{
			Backend:       "memory",
			WindowSeconds: 60,
		},
		Reports: ReportsConfig{
			Backend: "log",
			Subject: "world.reports",
		},
		Logging: LoggingConfig{
			ConsoleLevel: "info",
			FileLevel:    "debug",
			MaxSizeMB:    50,
			MaxBackups:   5,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "mmo-region",
			Insecure:    true,
		},
	}
}

// CounterWindow окно счётчика нарушений
func (c *CounterConfig) CounterWindow() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// GetRedisAddr адрес Redis с приоритетом: config -> env -> default
func (c *CounterConfig) GetRedisAddr() string {
	return getStringWithEnvFallback(c.RedisAddr, "WORLD_REDIS_ADDR", "localhost:6379")
}

// GetNATSURL адрес NATS с приоритетом: config -> env -> default
func (r *ReportsConfig) GetNATSURL() string {
	return getStringWithEnvFallback(r.NATSURL, "WORLD_NATS_URL", "nats://127.0.0.1:4222")
}

// GetAdminPort возвращает порт админского HTTP API с поддержкой fallback значений
func (s *ServerConfig) GetAdminPort() int {
	return getPortWithEnvFallback(s.AdminPort, "WORLD_ADMIN_PORT", 8088)
}

// GetAdminSecret ключ токенов операторов: config -> env
func (s *ServerConfig) GetAdminSecret() string {
	return getStringWithEnvFallback(s.AdminSecret, "WORLD_ADMIN_SECRET", "")
}

// GetOTLPEndpoint адрес коллектора трассировки: config -> env
func (t *TelemetryConfig) GetOTLPEndpoint() string {
	return getStringWithEnvFallback(t.OTLPEndpoint, "WORLD_OTLP_ENDPOINT", "")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultValue
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пробует ENV WORLD_CONFIG, а без него отдаёт Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("WORLD_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
