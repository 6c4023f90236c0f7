package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanschultz/kanboard/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

// StorageDriver selects the key/value backend.
type StorageDriver string

const (
	DriverSQLite StorageDriver = "sqlite"
	DriverRedis  StorageDriver = "redis"
	DriverMemory StorageDriver = "memory"
)

// Theme names accepted by ui.default_theme.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

type Config struct {
	Storage StorageConfig `toml:"storage"`
	Board   BoardConfig   `toml:"board"`
	UI      UIConfig      `toml:"ui"`
	Logging LoggingConfig `toml:"logging"`
	Server  ServerConfig  `toml:"server"`
}

type StorageConfig struct {
	Driver StorageDriver `toml:"driver"`
	Path   string        `toml:"path"`
	Redis  RedisConfig   `toml:"redis"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

type BoardConfig struct {
	Columns []ColumnConfig `toml:"columns"`
}

type ColumnConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

type UIConfig struct {
	ConfirmDelete   bool   `toml:"confirm_delete"`
	ShowDescription bool   `toml:"show_description"`
	DefaultTheme    string `toml:"default_theme"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

func defaultColumns() []ColumnConfig {
	out := make([]ColumnConfig, 0, 3)
	for _, column := range domain.DefaultColumns() {
		out = append(out, ColumnConfig{ID: string(column.Status), Name: column.Name})
	}
	return out
}

func Default(dbPath string) Config {
	return Config{
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   dbPath,
			Redis: RedisConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "kanboard:",
			},
		},
		Board: BoardConfig{
			Columns: defaultColumns(),
		},
		UI: UIConfig{
			ConfirmDelete:   true,
			ShowDescription: false,
			DefaultTheme:    ThemeDark,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".kanboard/log",
			},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	// Array tables append to an existing slice, so configured columns replace the defaults.
	var columnsOnly struct {
		Board BoardConfig `toml:"board"`
	}
	if err := toml.Unmarshal(content, &columnsOnly); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	if len(columnsOnly.Board.Columns) > 0 {
		cfg.Board.Columns = nil
	}
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	case DriverRedis:
		if strings.TrimSpace(c.Storage.Redis.Addr) == "" {
			return errors.New("storage.redis.addr is required for the redis driver")
		}
		if c.Storage.Redis.DB < 0 {
			return errors.New("storage.redis.db must be >= 0")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid storage.driver: %q", c.Storage.Driver)
	}

	if len(c.Board.Columns) == 0 {
		return errors.New("board.columns must include at least one column")
	}
	seen := map[string]struct{}{}
	for idx, column := range c.Board.Columns {
		id := strings.TrimSpace(strings.ToLower(column.ID))
		if id == "" {
			return fmt.Errorf("board.columns[%d].id is required", idx)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("board.columns[%d].id is duplicated: %s", idx, id)
		}
		seen[id] = struct{}{}
	}

	switch strings.TrimSpace(strings.ToLower(c.UI.DefaultTheme)) {
	case "", ThemeDark, ThemeLight:
	default:
		return fmt.Errorf("invalid ui.default_theme: %q", c.UI.DefaultTheme)
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when dev_file is enabled")
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must start with /: %q", name, endpoint)
		}
	}

	return nil
}

// DomainColumns converts the configured columns into domain columns.
func (c Config) DomainColumns() []domain.Column {
	out := make([]domain.Column, 0, len(c.Board.Columns))
	for _, column := range c.Board.Columns {
		parsed, err := domain.NewColumn(domain.Status(column.ID), column.Name)
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}
	return out
}

// LightThemeDefault reports whether ui.default_theme selects the light palette.
func (c Config) LightThemeDefault() bool {
	return strings.TrimSpace(strings.ToLower(c.UI.DefaultTheme)) == ThemeLight
}

// EnsureConfigDir creates the parent directory of a config file path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
