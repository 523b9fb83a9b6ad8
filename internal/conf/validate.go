package conf

import (
	"fmt"
	"net/url"
)

// Persistence provider names accepted in output.provider.
const (
	ProviderDatabase = "database"
	ProviderLocal    = "local"
)

// minSessionSecretLength is the shortest configured session secret
// accepted.
const minSessionSecretLength = 16

// ValidateSettings checks the loaded settings for configuration errors.
func ValidateSettings(settings *Settings) error {
	if settings.Inference.Endpoint == "" {
		return fmt.Errorf("inference.endpoint must not be empty")
	}
	if _, err := url.ParseRequestURI(settings.Inference.Endpoint); err != nil {
		return fmt.Errorf("inference.endpoint is not a valid URL: %w", err)
	}
	if settings.Inference.Timeout <= 0 {
		return fmt.Errorf("inference.timeout must be positive")
	}

	switch settings.Output.Provider {
	case ProviderDatabase:
		if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
			return fmt.Errorf("output.provider is %q but neither sqlite nor mysql is enabled", ProviderDatabase)
		}
		if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
			return fmt.Errorf("only one database backend may be enabled at a time")
		}
	case ProviderLocal:
		if settings.Output.Local.Path == "" {
			return fmt.Errorf("output.provider is %q but output.local.path is empty", ProviderLocal)
		}
	default:
		return fmt.Errorf("unknown output.provider %q, expected %q or %q",
			settings.Output.Provider, ProviderDatabase, ProviderLocal)
	}

	if settings.WebServer.Enabled {
		if settings.WebServer.Port == "" {
			return fmt.Errorf("webserver.port must not be empty when the web server is enabled")
		}
		if s := settings.Security.SessionSecret; s != "" && len(s) < minSessionSecretLength {
			return fmt.Errorf("security.sessionsecret must be at least %d characters; leave it empty to generate one at startup", minSessionSecretLength)
		}
	}

	return nil
}
