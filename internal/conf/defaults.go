// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "RedHarvest-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "redharvest.log")

	viper.SetDefault("inference.endpoint", "http://localhost:5000/predict")
	viper.SetDefault("inference.timeout", "30s")

	viper.SetDefault("output.provider", "database")
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "redharvest.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "redharvest")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "redharvest")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.local.path", "analyses/")

	viper.SetDefault("storage.path", "media/")
	viper.SetDefault("storage.baseurl", "/api/v2/media")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("security.sessionsecret", "")
	viper.SetDefault("security.sessionmaxage", 86400*7)
	viper.SetDefault("security.allowedorigins", []string{"*"})
	viper.SetDefault("security.adminemails", []string{})
}
