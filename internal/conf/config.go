// config.go: settings struct and functions to load and access application settings
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// MainSettings contains general application settings.
type MainSettings struct {
	Name string // application instance name
	Log  struct {
		Enabled bool   // true to enable file logging
		Path    string // path to log file
	}
}

// InferenceSettings configures the remote classification backend.
type InferenceSettings struct {
	Endpoint string        // URL of the YOLO predict endpoint
	Timeout  time.Duration // per-request timeout, enforced client side
}

// OutputSettings selects and configures the persistence backend.
type OutputSettings struct {
	// Provider selects the persistence strategy: "database" or "local".
	// The local provider keeps records and accounts in JSON files on
	// disk and needs no database server.
	Provider string
	SQLite   struct {
		Enabled bool
		Path    string // path to the SQLite database file
	}
	MySQL struct {
		Enabled  bool
		Username string
		Password string
		Database string
		Host     string
		Port     string
	}
	Local struct {
		Path string // directory for the local JSON record files
	}
}

// StorageSettings configures blob storage for analysis images.
type StorageSettings struct {
	Path    string // directory for uploaded image blobs
	BaseURL string // public base URL under which blobs are served
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled bool
	Port    string
	Debug   bool
}

// SecuritySettings configures sessions and authentication.
type SecuritySettings struct {
	// SessionSecret signs the session cookies. When empty, a random
	// secret is generated at startup and persisted next to the
	// configuration.
	SessionSecret  string
	SessionMaxAge  int      // session lifetime in seconds
	AllowedOrigins []string // CORS origins for the API
	AdminEmails    []string // emails that register with the admin role
}

// Settings is the root configuration structure.
type Settings struct {
	Debug     bool
	Main      MainSettings
	Inference InferenceSettings
	Output    OutputSettings
	Storage   StorageSettings
	WebServer WebServerSettings
	Security  SecuritySettings
}

// settingsMutex serializes Load, which mutates viper's global state.
var settingsMutex sync.Mutex

// Load reads the configuration file and returns the populated settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found, defaults apply.
	}

	return nil
}

// GetDefaultConfigPaths returns the search paths for the configuration file.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user config directory: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	return []string{
		".",
		filepath.Join(configDir, "redharvest-go"),
		filepath.Join(homeDir, ".config", "redharvest-go"),
	}, nil
}

// GetBasePath expands a relative directory against the working directory and
// ensures it exists.
func GetBasePath(path string) string {
	if path == "" {
		path = "."
	}
	if !filepath.IsAbs(path) {
		if wd, err := os.Getwd(); err == nil {
			path = filepath.Join(wd, path)
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "."
	}
	return path
}
