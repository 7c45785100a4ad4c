package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	driverName        = "mysql"
	DefaultConfigPath = "config/config.yaml"

	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

type Config struct {
	Version        string         `yaml:"version"`
	Mode           string         `yaml:"mode"`
	Addr           string         `yaml:"addr"`
	Storage        string         `yaml:"storage"`
	SeedSampleData bool           `yaml:"seed_sample_data"`
	Log            LogConfig      `yaml:"log"`
	DB             DatabaseConfig `yaml:"database"`
	Certificate    Certs          `yaml:"certificate"`
}

// LoadConfig reads the YAML file at path, then applies LIBRARY_* environment
// overrides. A .env file next to the binary is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("LIBRARY_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("LIBRARY_STORAGE"); v != "" {
		cfg.Storage = v
	}
	if v := os.Getenv("LIBRARY_DB_HOST"); v != "" {
		cfg.DB.Host = v
	}
	if v := os.Getenv("LIBRARY_DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LIBRARY_DB_PORT %q: %w", v, err)
		}
		cfg.DB.Port = port
	}
	if v := os.Getenv("LIBRARY_DB_USER"); v != "" {
		cfg.DB.Username = v
	}
	if v := os.Getenv("LIBRARY_DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}
	if v := os.Getenv("LIBRARY_DB_NAME"); v != "" {
		cfg.DB.DBName = v
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Storage == "" {
		c.Storage = StorageMySQL
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("mode must be dev or release, got %q", c.Mode)
	}
	switch c.Storage {
	case StorageMySQL:
		if c.DB.Host == "" || c.DB.DBName == "" {
			return errors.New("database.host and database.dbname are required for mysql storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage must be mysql or memory, got %q", c.Storage)
	}
	return nil
}

// DSN builds the go-sql-driver/mysql data source name. clientFoundRows makes
// RowsAffected report matched rows, which the conditional updates rely on.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&clientFoundRows=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.DBName)
}

func Connect(ctx context.Context, c DatabaseConfig) (*sqlx.DB, error) {
	return Open(ctx, c.DSN())
}

func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(40)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
