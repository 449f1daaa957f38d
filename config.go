package touchloop

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/phuslu/log"
)

const (
	configName = "touchloop"
	configFile = "config.toml"

	defaultWidth  = 640
	defaultHeight = 480
	defaultMaxFPS = 60
)

// Duration is a time.Duration written as "250ms" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	App      AppConfig         `toml:"app"`
	Window   WindowConfig      `toml:"window"`
	Input    map[string]string `toml:"input"`
	PostProc PostProcConfig    `toml:"postproc"`
	Log      LogConfig         `toml:"log"`
}

type AppConfig struct {
	ShowFPS        bool    `toml:"show_fps"`
	ShowEventStats bool    `toml:"show_eventstats"`
	MaxFPS         float64 `toml:"max_fps"`
}

type WindowConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// PostProcConfig holds the parameters of every built-in stage. Distances
// are in normalized units.
type PostProcConfig struct {
	Modules           []string    `toml:"modules"`
	DejitterDistance  float64     `toml:"dejitter_distance"`
	DoubleTapDistance float64     `toml:"doubletap_distance"`
	DoubleTapTime     Duration    `toml:"doubletap_time"`
	IgnoreRegions     [][]float64 `toml:"ignore_regions"`
	RetainDistance    float64     `toml:"retain_distance"`
	RetainTime        Duration    `toml:"retain_time"`
	Script            string      `toml:"script"`
	LuaLib            string      `toml:"lua_lib"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			MaxFPS: defaultMaxFPS,
		},
		Window: WindowConfig{
			Width:  defaultWidth,
			Height: defaultHeight,
		},
		Input: map[string]string{},
		PostProc: PostProcConfig{
			DejitterDistance:  0.004,
			DoubleTapDistance: 0.025,
			DoubleTapTime:     Duration{250 * time.Millisecond},
			RetainDistance:    0.05,
			RetainTime:        Duration{100 * time.Millisecond},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir resolves $XDG_CONFIG_HOME/touchloop, falling back to
// ~/.config/touchloop.
func ConfigDir() string {
	return filepath.Join(xdgOrFallback("XDG_CONFIG_HOME", filepath.Join(os.Getenv("HOME"), ".config")), configName)
}

// ConfigPath is the default config file location.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), configFile)
}

func xdgOrFallback(xdg string, fallback string) string {
	dir := os.Getenv(xdg)
	if dir != "" {
		if ok, err := exists(dir); ok && err == nil {
			log.Debug().Msgf("Resolved $%s to '%s'", xdg, dir)
			return dir
		}
	}
	log.Debug().Msgf("Couldn't resolve $%s falling back to '%s'", xdg, fallback)
	return fallback
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// LoadConfig reads path over the defaults. A missing file is created with
// the defaults.
func LoadConfig(path string) (*Config, error) {
	conf := DefaultConfig()
	ok, err := exists(path)
	if err != nil {
		return nil, fmt.Errorf("check config %s: %w", path, err)
	}
	if !ok {
		log.Info().Str("path", path).Msg("Initializing config")
		if err := WriteConfig(path, conf); err != nil {
			return nil, err
		}
		return conf, nil
	}
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if conf.Input == nil {
		conf.Input = map[string]string{}
	}
	return conf, nil
}

// WriteConfig encodes conf to path, creating the directory if needed.
func WriteConfig(path string, conf *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var buffer bytes.Buffer
	if err := toml.NewEncoder(&buffer).Encode(conf); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buffer.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// AddProvider records spec in the [input] section.
func (c *Config) AddProvider(spec ProviderSpec) {
	if c.Input == nil {
		c.Input = map[string]string{}
	}
	value := spec.Backend
	if spec.Args != "" {
		value += "," + spec.Args
	}
	c.Input[spec.ID] = value
}

// ProviderSpecs returns the [input] section as specs, sorted by id.
func (c *Config) ProviderSpecs() []ProviderSpec {
	ids := make([]string, 0, len(c.Input))
	for id := range c.Input {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	specs := make([]ProviderSpec, 0, len(ids))
	for _, id := range ids {
		backend, args := splitBackend(c.Input[id])
		specs = append(specs, ProviderSpec{ID: id, Backend: backend, Args: args})
	}
	return specs
}

// ParseSize parses "WxH".
func ParseSize(s string) (width, height int, err error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		err = fmt.Errorf("size %q: want WxH", s)
		return
	}
	if width, err = strconv.Atoi(ws); err != nil {
		err = fmt.Errorf("size %q: %w", s, err)
		return
	}
	if height, err = strconv.Atoi(hs); err != nil {
		err = fmt.Errorf("size %q: %w", s, err)
		return
	}
	if width <= 0 || height <= 0 {
		err = fmt.Errorf("size %q: must be positive", s)
	}
	return
}

func SetupLogging(level string) {
	if level == "" {
		level = "info"
	}
	log.DefaultLogger.SetLevel(log.ParseLevel(level))
}
