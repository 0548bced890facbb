// Package config loads registry configuration from an optional YAML file
// with environment variable overrides, validated with struct tags.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hktransit/hktransit/pkg/util"
)

type DataConfig struct {
	// ChecksumURL serves the current dataset checksum for freshness probes.
	ChecksumURL string `yaml:"checksumURL" validate:"required,url"`
	// DataSheetURL serves the full DataSheet payload.
	DataSheetURL string `yaml:"dataSheetURL" validate:"required,url"`
	// RefreshInterval is how often the background freshness probe runs.
	RefreshInterval Duration `yaml:"refreshInterval" validate:"gt=0"`
}

type ETAConfig struct {
	// QueryTimeout bounds each upstream arrival query. It must sit well
	// under the UI polling interval.
	QueryTimeout Duration `yaml:"queryTimeout" validate:"gt=0"`
	// ResultTTL is how long a result stays fresh for coalescing callers.
	ResultTTL Duration `yaml:"resultTTL" validate:"gt=0"`
	// MaxConcurrent bounds simultaneous upstream calls across all keys.
	MaxConcurrent int `yaml:"maxConcurrent" validate:"gt=0"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Database int    `yaml:"database" validate:"gte=0"`
}

type FavouritesConfig struct {
	// MaxSlots is the highest favourite slot index (slots are 1-indexed).
	MaxSlots int `yaml:"maxSlots" validate:"gt=0"`
}

type ServerConfig struct {
	Listen string `yaml:"listen" validate:"required"`
}

type Config struct {
	Data       DataConfig       `yaml:"data"`
	ETA        ETAConfig        `yaml:"eta"`
	Redis      RedisConfig      `yaml:"redis"`
	Favourites FavouritesConfig `yaml:"favourites"`
	Server     ServerConfig     `yaml:"server"`
}

func Defaults() Config {
	return Config{
		Data: DataConfig{
			ChecksumURL:     "https://data.hkbus.app/checksum.md5",
			DataSheetURL:    "https://data.hkbus.app/routeFareList.min.json",
			RefreshInterval: Duration(30 * time.Minute),
		},
		ETA: ETAConfig{
			QueryTimeout:  Duration(10 * time.Second),
			ResultTTL:     Duration(30 * time.Second),
			MaxConcurrent: 32,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Favourites: FavouritesConfig{
			MaxSlots: 30,
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
	}
}

// Load reads the config file at path (skipped when empty or missing),
// applies HKTRANSIT_* environment overrides and validates the result.
func Load(path string) (Config, error) {
	config := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &config); err != nil {
				return config, err
			}
		} else if !os.IsNotExist(err) {
			return config, err
		}
	}

	applyEnvironment(&config)

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return config, err
	}

	return config, nil
}

func applyEnvironment(config *Config) {
	env := util.GetEnvironmentVariables()

	if value := env["HKTRANSIT_DATA_CHECKSUM_URL"]; value != "" {
		config.Data.ChecksumURL = value
	}
	if value := env["HKTRANSIT_DATA_SHEET_URL"]; value != "" {
		config.Data.DataSheetURL = value
	}
	if value := env["HKTRANSIT_REDIS_ADDRESS"]; value != "" {
		config.Redis.Address = value
	}
	if value := env["HKTRANSIT_REDIS_PASSWORD"]; value != "" {
		config.Redis.Password = value
	}
	if value := env["HKTRANSIT_REDIS_DATABASE"]; value != "" {
		if database, err := strconv.Atoi(value); err == nil {
			config.Redis.Database = database
		}
	}
	if value := env["HKTRANSIT_LISTEN"]; value != "" {
		config.Server.Listen = value
	}
}
