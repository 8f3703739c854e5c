package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const (
	SourceAppConfig = "appconfig"
	SourceHTTP      = "http"
	SourceFile      = "file"
)

// Config holds the settings shared by all flagkit commands.
type Config struct {
	Source       string          `mapstructure:"source"`
	AppConfig    AppConfigConfig `mapstructure:"appconfig"`
	HTTP         HTTPConfig      `mapstructure:"http"`
	File         FileConfig      `mapstructure:"file"`
	Session      SessionConfig   `mapstructure:"session"`
	PollInterval time.Duration   `mapstructure:"poll_interval"`
	InitTimeout  time.Duration   `mapstructure:"init_timeout"`
	Debug        bool            `mapstructure:"debug"`
}

type AppConfigConfig struct {
	Application         string        `mapstructure:"application"`
	Environment         string        `mapstructure:"environment"`
	Profile             string        `mapstructure:"profile"`
	Region              string        `mapstructure:"region"`
	MinimumPollInterval time.Duration `mapstructure:"minimum_poll_interval"`
}

type HTTPConfig struct {
	API     string `mapstructure:"api"`
	Retries int    `mapstructure:"retries"`
}

type FileConfig struct {
	Path string `mapstructure:"path"`
}

type SessionConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	SafetyMargin time.Duration `mapstructure:"safety_margin"`
}

func DefaultConfig() *Config {
	return &Config{
		Source: SourceAppConfig,
		AppConfig: AppConfigConfig{
			Application: "TestApp",
			Environment: "Dev",
			Profile:     "FeatureFlagConfigProfile",
			Region:      "us-east-1",
		},
		Session: SessionConfig{
			TTL:          24 * time.Hour,
			SafetyMargin: time.Minute,
		},
		PollInterval: 15 * time.Second,
		InitTimeout:  30 * time.Second,
	}
}

// Load reads configuration from an optional file and environment variables.
// Environment variables use the prefix "FLAGKIT" and the dot character in
// keys is replaced by an underscore. For example, "appconfig.region" becomes
// "FLAGKIT_APPCONFIG_REGION". When configFile is empty, flagkit.yaml in the
// working directory is read if present.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("flagkit")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("FLAGKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.Source = strings.ToLower(cfg.Source)
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	switch c.Source {
	case SourceAppConfig:
		if c.AppConfig.Application == "" {
			result = multierror.Append(result, errors.New("appconfig.application is required"))
		}
		if c.AppConfig.Environment == "" {
			result = multierror.Append(result, errors.New("appconfig.environment is required"))
		}
		if c.AppConfig.Profile == "" {
			result = multierror.Append(result, errors.New("appconfig.profile is required"))
		}
	case SourceHTTP:
		if c.HTTP.API == "" {
			result = multierror.Append(result, errors.New("http.api is required for the http source"))
		}
	case SourceFile:
		if c.File.Path == "" {
			result = multierror.Append(result, errors.New("file.path is required for the file source"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown source %q (want appconfig, http or file)", c.Source))
	}
	if c.Session.TTL <= 0 {
		result = multierror.Append(result, errors.New("session.ttl must be positive"))
	}
	if c.Session.SafetyMargin < 0 || c.Session.SafetyMargin >= c.Session.TTL {
		result = multierror.Append(result, errors.New("session.safety_margin must be non-negative and shorter than session.ttl"))
	}
	if c.PollInterval <= 0 {
		result = multierror.Append(result, errors.New("poll_interval must be positive"))
	}
	return result.ErrorOrNil()
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
