package main

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// config holds settings from validgen.yaml, VALIDGEN_* environment variables
// and flags, in increasing order of precedence.
type config struct {
	BuildTags    []string    `mapstructure:"build_tags"`
	OutputDir    string      `mapstructure:"output_dir"`
	Workers      int         `mapstructure:"workers"`
	IncludeTests bool        `mapstructure:"include_tests"`
	Verbose      bool        `mapstructure:"verbose"`
	JSON         bool        `mapstructure:"json"`
	Watch        watchConfig `mapstructure:"watch"`
}

type watchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Patterns []string      `mapstructure:"patterns"`
}

// loadConfig reads the configuration. configFile may be empty, in which case
// validgen.yaml is looked for in the current directory and is optional.
func loadConfig(configFile string, flags *pflag.FlagSet) (*config, error) {
	v := viper.New()

	v.SetDefault("build_tags", []string{"validgen"})
	v.SetDefault("workers", 0)
	v.SetDefault("watch.debounce", "100ms")
	v.SetDefault("watch.patterns", []string{"./..."})

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("validgen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("VALIDGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "binding flag --%s", name)
				}
			}
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if cfg.Workers < 0 {
		return nil, errors.Newf("workers must not be negative, got %d", cfg.Workers)
	}
	return &cfg, nil
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"build_tags":     "tags",
	"output_dir":     "output_dir",
	"workers":        "workers",
	"include_tests":  "include_tests",
	"verbose":        "verbose",
	"json":           "json",
	"watch.debounce": "debounce",
}
