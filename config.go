package webwindow

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultStartURL = "https://google.com/"

// Config holds everything a WebWindow reads at startup.
type Config struct {
	Title string `yaml:"title"`
	// StartURL is normalized before the first navigation of every cycle.
	StartURL string `yaml:"start_url"`
	// UserDataFolder is where the engine keeps its profile.
	UserDataFolder string `yaml:"user_data_folder"`
	// BrowserArgs are extra command line switches for the browser process.
	BrowserArgs string `yaml:"browser_args"`
	// LoaderPath points at a WebView2Loader.dll to load from memory instead
	// of the one on the DLL search path.
	LoaderPath   string `yaml:"loader_path"`
	Debug        bool   `yaml:"debug"`
	ContextMenus bool   `yaml:"context_menus"`
	// HTTPSOnly cancels every navigation to a URI without an https scheme.
	HTTPSOnly   bool     `yaml:"https_only"`
	InitScripts []string `yaml:"init_scripts"`
	LogLevel    string   `yaml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		Title:          "WebWindow",
		StartURL:       DefaultStartURL,
		UserDataFolder: defaultUserDataFolder(),
		LogLevel:       "info",
	}
}

func defaultUserDataFolder() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	exe := filepath.Base(os.Args[0])
	return filepath.Join(base, strings.TrimSuffix(exe, path.Ext(exe)))
}

// LoadConfig reads a YAML file over DefaultConfig. Unknown keys are errors.
func LoadConfig(file string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(file)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", file, err)
	}
	if strings.TrimSpace(cfg.StartURL) == "" {
		cfg.StartURL = DefaultStartURL
	}
	return cfg, nil
}
