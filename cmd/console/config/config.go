// Package config loads console settings from flags, environment variables,
// and an optional config file, in ascending precedence of flag over file.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the console's settings.
type Config struct {
	Snapshot     string
	LogLevel     string
	MaxDepth     int
	MaxRoutes    int
	MinLiquidity *big.Int
	Interval     time.Duration
	Pairs        []string
	MetricsAddr  string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAPGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("max-depth", 2)
	v.SetDefault("max-routes", 16)
	v.SetDefault("interval", 15*time.Second)
	v.SetDefault("metrics-addr", ":9090")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Snapshot:    v.GetString("snapshot"),
		LogLevel:    v.GetString("log-level"),
		MaxDepth:    v.GetInt("max-depth"),
		MaxRoutes:   v.GetInt("max-routes"),
		Interval:    v.GetDuration("interval"),
		Pairs:       v.GetStringSlice("pairs"),
		MetricsAddr: v.GetString("metrics-addr"),
	}

	if raw := v.GetString("min-liquidity"); raw != "" {
		minLiquidity, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return Config{}, fmt.Errorf("min-liquidity: %q is not a base-10 integer", raw)
		}
		cfg.MinLiquidity = minLiquidity
	}
	return cfg, nil
}
