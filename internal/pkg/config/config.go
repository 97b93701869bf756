package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Tiles     TilesConfig     `mapstructure:"tiles"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// CameraConfig holds defaults for new camera sessions.
type CameraConfig struct {
	FrameRate         int     `mapstructure:"frame_rate"`
	MinZoom           float64 `mapstructure:"min_zoom"`
	MaxZoom           float64 `mapstructure:"max_zoom"`
	Width             int     `mapstructure:"width"`
	Height            int     `mapstructure:"height"`
	RenderWorldCopies bool    `mapstructure:"render_world_copies"`
	// SessionTTL is how long, in seconds, a session snapshot stays cached.
	SessionTTL int `mapstructure:"session_ttl"`
}

// DispatchConfig sizes the background worker pool.
type DispatchConfig struct {
	Workers       int    `mapstructure:"workers"`
	Transport     string `mapstructure:"transport"` // "inproc" | "nats"
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type TilesConfig struct {
	MBTilesPath string `mapstructure:"mbtiles_path"`
	MaxTiles    int    `mapstructure:"max_tiles"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultWorkers is the pool size used when dispatch.workers is 0: one
// context per CPU, keeping one for the main goroutines.
func DefaultWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: MAPCAM_DATABASE_HOST → database.host
	v.SetEnvPrefix("MAPCAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch.Workers = DefaultWorkers()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mapcam")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "mapcam")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.key_prefix", "mapcam:")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("camera.frame_rate", 60)
	v.SetDefault("camera.min_zoom", 0)
	v.SetDefault("camera.max_zoom", 22)
	v.SetDefault("camera.width", 1024)
	v.SetDefault("camera.height", 768)
	v.SetDefault("camera.render_world_copies", true)
	v.SetDefault("camera.session_ttl", 3600)
	v.SetDefault("dispatch.workers", 0)
	v.SetDefault("dispatch.transport", "inproc")
	v.SetDefault("dispatch.subject_prefix", "mapcam.worker")
	v.SetDefault("tiles.mbtiles_path", "")
	v.SetDefault("tiles.max_tiles", 64)
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.task_queue", "mapcam-tours")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Camera.FrameRate <= 0 || c.Camera.FrameRate > 240 {
		errs = append(errs, fmt.Sprintf("camera.frame_rate must be 1-240, got %d", c.Camera.FrameRate))
	}
	if c.Camera.MinZoom < 0 || c.Camera.MaxZoom > 24 || c.Camera.MinZoom > c.Camera.MaxZoom {
		errs = append(errs, fmt.Sprintf("camera zoom range must satisfy 0 <= min_zoom <= max_zoom <= 24, got [%v, %v]", c.Camera.MinZoom, c.Camera.MaxZoom))
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, "camera.width and camera.height must be positive")
	}
	if c.Dispatch.Workers < 0 {
		errs = append(errs, fmt.Sprintf("dispatch.workers must not be negative, got %d", c.Dispatch.Workers))
	}
	if c.Dispatch.Transport != "inproc" && c.Dispatch.Transport != "nats" {
		errs = append(errs, fmt.Sprintf("dispatch.transport must be inproc or nats, got %q", c.Dispatch.Transport))
	}
	if c.Dispatch.Transport == "nats" && c.Dispatch.SubjectPrefix == "" {
		errs = append(errs, "dispatch.subject_prefix is required with the nats transport")
	}
	if c.Tiles.MaxTiles <= 0 {
		errs = append(errs, "tiles.max_tiles must be positive")
	}
	if c.Temporal.Enabled && c.Temporal.HostPort == "" {
		errs = append(errs, "temporal.host_port is required when temporal is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
