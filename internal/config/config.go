package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tanq16/segdl/internal/utils"
)

type Config struct {
	Connections      int           `mapstructure:"connections"`
	Timeout          time.Duration `mapstructure:"timeout"`
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	SampleInterval   time.Duration `mapstructure:"sample_interval"`
	BufferSize       int           `mapstructure:"buffer_size"`
	UserAgent        string        `mapstructure:"user_agent"`
	Proxy            string        `mapstructure:"proxy"`
	ProxyUsername    string        `mapstructure:"proxy_username"`
	ProxyPassword    string        `mapstructure:"proxy_password"`
	Headers          []string      `mapstructure:"headers"`
	BearerToken      string        `mapstructure:"bearer_token"`
	OutputDir        string        `mapstructure:"output_dir"`
	Workers          int           `mapstructure:"workers"`
	AWSProfile       string        `mapstructure:"aws_profile"`
	AWSRegion        string        `mapstructure:"aws_region"`
	Debug            bool          `mapstructure:"debug"`
	LogFile          string        `mapstructure:"log_file"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"connections":        "connections",
	"timeout":            "timeout",
	"keep-alive-timeout": "keep_alive_timeout",
	"probe-timeout":      "probe_timeout",
	"sample-interval":    "sample_interval",
	"buffer-size":        "buffer_size",
	"user-agent":         "user_agent",
	"proxy":              "proxy",
	"proxy-username":     "proxy_username",
	"proxy-password":     "proxy_password",
	"header":             "headers",
	"bearer-token":       "bearer_token",
	"output":             "output_dir",
	"workers":            "workers",
	"aws-profile":        "aws_profile",
	"aws-region":         "aws_region",
	"debug":              "debug",
	"log-file":           "log_file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connections", utils.DefaultConnections)
	v.SetDefault("timeout", 3*time.Minute)
	v.SetDefault("keep_alive_timeout", 90*time.Second)
	v.SetDefault("probe_timeout", utils.DefaultProbeTimeout)
	v.SetDefault("sample_interval", utils.DefaultSampleInterval)
	v.SetDefault("buffer_size", utils.DefaultBufferSize)
	v.SetDefault("user_agent", utils.ToolUserAgent)
	v.SetDefault("headers", []string{})
	v.SetDefault("output_dir", ".")
	v.SetDefault("workers", 0)
	v.SetDefault("debug", false)
	v.SetDefault("log_file", "")
}

// Load merges defaults, the optional YAML file at path, SEGDL_* environment
// variables and any flags that were set explicitly, in increasing priority.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("SEGDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Connections <= 0:
		c.Connections = utils.DefaultConnections
	case c.Connections > utils.MaxConnections:
		c.Connections = utils.MaxConnections
	}
	if c.Timeout <= 0 || c.KeepAliveTimeout <= 0 || c.ProbeTimeout <= 0 || c.SampleInterval <= 0 {
		return errors.New("timeouts and the sample interval must be positive")
	}
	if c.BufferSize <= 0 {
		c.BufferSize = utils.DefaultBufferSize
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}

	// credentials embedded in the proxy URL fill in missing flags
	if c.Proxy != "" {
		parsed, err := url.Parse(c.Proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
		if parsed.User != nil && c.ProxyUsername == "" {
			c.ProxyUsername = parsed.User.Username()
			if password, set := parsed.User.Password(); set {
				c.ProxyPassword = password
			}
			parsed.User = nil
			c.Proxy = parsed.String()
		}
	}
	return nil
}

// HTTPClientConfig derives the shared client settings. More than the
// default number of connections enables the larger socket buffers.
func (c *Config) HTTPClientConfig() utils.HTTPClientConfig {
	return utils.HTTPClientConfig{
		Timeout:        c.Timeout,
		KATimeout:      c.KeepAliveTimeout,
		ProxyURL:       c.Proxy,
		ProxyUsername:  c.ProxyUsername,
		ProxyPassword:  c.ProxyPassword,
		UserAgent:      c.UserAgent,
		Headers:        utils.ParseHeaderArgs(c.Headers),
		BearerToken:    c.BearerToken,
		HighThreadMode: c.Connections > utils.DefaultConnections,
	}
}
