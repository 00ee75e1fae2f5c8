package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"

	"github.com/stegokey/backend-go/internal/crypto"
	"github.com/stegokey/backend-go/pkg/carrier"
	"github.com/stegokey/backend-go/pkg/carrier/avi"
)

const (
	configDir  = ".stegokey"
	configName = "config"
	envPrefix  = "STEGOKEY"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Cipher   CipherConfig   `mapstructure:"cipher" yaml:"cipher"`
	Video    VideoConfig    `mapstructure:"video" yaml:"video"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Listen      string     `mapstructure:"listen" yaml:"listen"`
	BaseURL     string     `mapstructure:"baseURL" yaml:"baseURL,omitempty"`
	MaxUploadMB int64      `mapstructure:"maxUploadMB" yaml:"maxUploadMB"`
	CORS        CORSConfig `mapstructure:"cors" yaml:"cors"`
}

type CORSConfig struct {
	Origins []string `mapstructure:"origins" yaml:"origins"`
}

type StoreConfig struct {
	Path string        `mapstructure:"path" yaml:"path"`
	TTL  time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type DatabaseConfig struct {
	URL     string `mapstructure:"url" yaml:"url"`
	Migrate bool   `mapstructure:"migrate" yaml:"migrate"`
}

type AuthConfig struct {
	Wellknown string `mapstructure:"wellknown" yaml:"wellknown"`
}

type CipherConfig struct {
	Algorithm string `mapstructure:"algorithm" yaml:"algorithm"`
}

type VideoConfig struct {
	Encoders []string `mapstructure:"encoders" yaml:"encoders"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":5000")
	v.SetDefault("server.baseURL", "")
	v.SetDefault("server.maxUploadMB", 64)
	v.SetDefault("server.cors.origins", []string{"http://localhost:3000"})
	v.SetDefault("store.path", "")
	v.SetDefault("store.ttl", "24h")
	v.SetDefault("database.url", "")
	v.SetDefault("database.migrate", false)
	v.SetDefault("auth.wellknown", "")
	v.SetDefault("cipher.algorithm", crypto.DefaultAlgorithm)
	v.SetDefault("video.encoders", carrier.DefaultVideoEncoders)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// readConfig loads file, or the first config found under ~/.stegokey and
// ./.stegokey. A missing config file is not an error.
func readConfig(v *viper.Viper, file string) error {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, configDir))
		}
		v.AddConfigPath(configDir)
		v.SetConfigName(configName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if !slices.Contains(crypto.SupportedAlgorithms, c.Cipher.Algorithm) {
		errs = append(errs, fmt.Errorf("cipher.algorithm: unsupported %q", c.Cipher.Algorithm))
	}
	if len(c.Video.Encoders) == 0 {
		errs = append(errs, errors.New("video.encoders: at least one encoder is required"))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("server.maxUploadMB: must be positive"))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: %q is neither text nor json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// knownEncoders filters names down to registered video encoders.
func knownEncoders(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, err := avi.LookupEncoder(n); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func newLogger(c LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
