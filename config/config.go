package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the moneymore.toml file. Flags override file values;
// a missing file yields the defaults.
type Config struct {
	API   API   `toml:"api"`
	DB    DB    `toml:"db"`
	Chart Chart `toml:"chart"`
}

// API configures the data proxy client. Durations are TOML
// integers in nanoseconds.
type API struct {
	BaseURL   string        `toml:"base_url"`
	Timeout   time.Duration `toml:"timeout"`
	RateEvery time.Duration `toml:"rate_every"`
	RateBurst int           `toml:"rate_burst"`
}

type DB struct {
	ConnStr string `toml:"conn_str"`
}

type Chart struct {
	OutputDir string `toml:"output_dir"`
}

func Default() Config {
	return Config{
		API: API{
			BaseURL:   "http://localhost:5000/api/v1",
			Timeout:   30 * time.Second,
			RateEvery: 200 * time.Millisecond,
			RateBurst: 1,
		},
		DB: DB{
			ConnStr: "postgres://postgres:postgres" +
				"@localhost/moneymore?sslmode=disable",
		},
		Chart: Chart{
			OutputDir: "work/charts",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %s", err)
	}

	err = toml.Unmarshal(b, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config: %s: %s", path, err)
	}
	return cfg, nil
}
