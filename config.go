package straincrawler

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// configService represents the application configuration.
type configService struct {
	v *viper.Viper // Viper instance for configuration management
}

// newConfig creates a new instance of Config. A missing .env file is not an error,
// the environment alone is enough.
func newConfig() *configService {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/")
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	setConfigDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Error reading Config file: %v\n", err)
		}
	}

	return &configService{v: v}
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("APP_NAME", "straincrawler")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CLOUD_LOGGING", false)

	v.SetDefault("BASE_URL", "https://www.leafly.com")
	v.SetDefault("USER_AGENT", defaultUserAgent)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("REQUEST_DELAY", "10s")
	v.SetDefault("UPLOAD_DELAY", "500ms")
	v.SetDefault("CHECK_ROBOTS_TXT", false)
	v.SetDefault("STRICT_CATALOG", true)
	v.SetDefault("DEV_CRAWL_LIMIT", 0)

	v.SetDefault("IMAGES_DIR", "strain_images")
	v.SetDefault("CATALOG_FILE", "data.json")
	v.SetDefault("ENRICHED_FILE", "enhanced-data.json")
	v.SetDefault("RECONCILED_FILE", "enhanced-data-updated.json")

	v.SetDefault("GCS_PREFIX", "strains/")
	v.SetDefault("IMAGE_WIDTH", 512)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("CHECKPOINT_DRIVER", "none")
	v.SetDefault("MONGO_HOST", "localhost")
	v.SetDefault("MONGO_PORT", 27017)

	v.SetDefault("ARCHIVE_HTML", false)
}

// Env retrieves a configuration value from environment variables.
func (c *configService) Env(envName string, defaultValue ...interface{}) interface{} {
	value := c.v.Get(envName)
	if value != nil {
		return value
	}

	if len(defaultValue) > 0 {
		return defaultValue[0]
	}

	return nil
}

func (c *configService) EnvString(envName string, defaultValue ...string) string {
	value := c.v.Get(envName)
	if value != nil && fmt.Sprint(value) != "" {
		return fmt.Sprint(value)
	}

	if len(defaultValue) > 0 {
		return defaultValue[0]
	}

	return ""
}

// Add adds a configuration to the application.
func (c *configService) Add(name string, configuration interface{}) {
	c.v.Set(name, configuration)
}

// IsSet reports whether the key has a value from any source, defaults included.
func (c *configService) IsSet(path string) bool {
	return c.v.IsSet(path)
}

// GetString retrieves a string type configuration value from the application.
func (c *configService) GetString(path string) string {
	return c.v.GetString(path)
}

// GetInt retrieves an integer type configuration value from the application.
func (c *configService) GetInt(path string) int {
	return c.v.GetInt(path)
}

// GetBool retrieves a boolean type configuration value from the application.
func (c *configService) GetBool(path string) bool {
	return c.v.GetBool(path)
}

// GetDuration expects Go duration strings such as "10s".
func (c *configService) GetDuration(path string) time.Duration {
	return c.v.GetDuration(path)
}

func (c *configService) isLocalEnv() bool {
	return c.GetString("APP_ENV") == "local"
}
