/*
config.go - Application configuration

PURPOSE:
  Loads server, database, logging, admin, attendance and seed settings
  from defaults, an optional YAML file and the environment.

PRECEDENCE:
  environment > config file > defaults

  Environment keys use the ATTENDANCE_ prefix with "." replaced by "_",
  e.g. ATTENDANCE_SERVER_PORT, ATTENDANCE_LOG_LEVEL. DATABASE_URL is also
  honored for db.url. A .env file in the working directory is loaded first
  when present.

FILE LOOKUP:
  --config path, otherwise config.yaml in ./config or the working directory.
  A missing file is not an error.

SEE ALSO:
  - cmd/server/main.go: --config flag
  - logger/logger.go: Consumes LogConfig
*/
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/warp/attendance-engine/attendance"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Log        LogConfig        `mapstructure:"log"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Attendance AttendanceConfig `mapstructure:"attendance"`
	Seed       SeedConfig       `mapstructure:"seed"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig selects the store. URL wins over Path when set.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	URL    string `mapstructure:"url"`
}

// Target returns the driver name and DSN to open. A postgres:// or
// postgresql:// URL selects the postgres driver regardless of Driver.
func (c DatabaseConfig) Target() (driver, dsn string) {
	if c.URL != "" {
		if strings.HasPrefix(c.URL, "postgres://") || strings.HasPrefix(c.URL, "postgresql://") {
			return "postgres", c.URL
		}
		return c.Driver, c.URL
	}
	return c.Driver, c.Path
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
	File   string `mapstructure:"file"`   // rotated with lumberjack when set
}

// AdminConfig holds the mock admin console credentials.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type AttendanceConfig struct {
	Timezone       string   `mapstructure:"timezone"`
	Holidays       []string `mapstructure:"holidays"` // "MM-DD=Name"
	SimulationMode string   `mapstructure:"simulation_mode"`
}

// Location resolves Timezone.
func (c AttendanceConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid attendance.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Calendar builds the holiday calendar. An empty list means the defaults.
func (c AttendanceConfig) Calendar() (*attendance.HolidayCalendar, error) {
	if len(c.Holidays) == 0 {
		return attendance.NewHolidayCalendar(attendance.DefaultHolidays()...), nil
	}
	holidays, err := attendance.ParseHolidays(c.Holidays)
	if err != nil {
		return nil, err
	}
	return attendance.NewHolidayCalendar(holidays...), nil
}

// Mode parses the initial simulation mode.
func (c AttendanceConfig) Mode() (attendance.SimulationMode, error) {
	if c.SimulationMode == "" {
		return attendance.ModeNormal, nil
	}
	return attendance.ParseSimulationMode(c.SimulationMode)
}

type SeedConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DemoEmployee string `mapstructure:"demo_employee"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration from path (optional), the environment and
// defaults, then validates it.
func Load(path string) (*Config, error) {
	// .env is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("db.url", "ATTENDANCE_DB_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173", "http://localhost:8000"})

	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.path", "attendance.db")
	v.SetDefault("db.url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "admin")

	v.SetDefault("attendance.timezone", "Asia/Kolkata")
	v.SetDefault("attendance.holidays", []string{})
	v.SetDefault("attendance.simulation_mode", string(attendance.ModeNormal))

	v.SetDefault("seed.enabled", true)
	v.SetDefault("seed.demo_employee", "E1001")
}

// Validate checks the settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be between 1 and 65535")
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pg":
	default:
		return fmt.Errorf("config: unsupported db.driver %q", c.Database.Driver)
	}
	if driver, dsn := c.Database.Target(); dsn == "" {
		return fmt.Errorf("config: db.path or db.url is required for %s", driver)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format must be json or console")
	}
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return fmt.Errorf("config: admin.username and admin.password are required")
	}
	if _, err := c.Attendance.Location(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Attendance.Calendar(); err != nil {
		return fmt.Errorf("config: attendance.holidays: %w", err)
	}
	if _, err := c.Attendance.Mode(); err != nil {
		return fmt.Errorf("config: attendance.simulation_mode: %w", err)
	}
	return nil
}
