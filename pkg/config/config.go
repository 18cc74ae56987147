package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Pubsub struct {
		// URL of the websocket hub, e.g. ws://localhost:3000/pubsub.
		// When empty the server keeps events in an in-process hub.
		URL    string `yaml:"url"`
		APIKey string `yaml:"api_key"`
	} `yaml:"pubsub"`
	Security struct {
		APIKeys struct {
			Backend  []string `yaml:"backend"`
			Frontend []string `yaml:"frontend"`
		} `yaml:"api_keys"`
		SigningKeys []string `yaml:"signing_keys"`
		RateLimit   struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"security"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text|json
	} `yaml:"logging"`
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// reports whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("CHATD_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("CHATD_ADDRESS"); host != "" {
			envUsed = true
			cfg.Server.Address = host
		}
		if port := os.Getenv("CHATD_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("CHATD_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("CHATD_PUBSUB_URL"); v != "" {
		envUsed = true
		cfg.Pubsub.URL = v
	}
	if v := os.Getenv("CHATD_PUBSUB_API_KEY"); v != "" {
		envUsed = true
		cfg.Pubsub.APIKey = v
	}
	if v := os.Getenv("CHATD_API_BACKEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Backend = parseList(v)
	}
	if v := os.Getenv("CHATD_API_FRONTEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Frontend = parseList(v)
	}
	if v := os.Getenv("CHATD_SIGNING_KEYS"); v != "" {
		envUsed = true
		cfg.Security.SigningKeys = parseList(v)
	}
	if v := os.Getenv("CHATD_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CHATD_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("CHATD_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHATD_LOG_FORMAT"); v != "" {
		envUsed = true
		cfg.Logging.Format = v
	}
	return envUsed
}

// LoadEffective loads config from the given path and applies environment
// overrides. A missing file is not an error; env vars alone may configure
// the server.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	return cfg, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided value
// and the environment variable `CHATD_CONFIG` when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CHATD_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// SecKeys derives the key sets used by the auth middleware. Signing keys
// default to the backend API keys when not configured separately.
func (c *Config) SecKeys() (backend, frontend, signing map[string]struct{}) {
	backend = map[string]struct{}{}
	for _, k := range c.Security.APIKeys.Backend {
		backend[k] = struct{}{}
	}
	frontend = map[string]struct{}{}
	for _, k := range c.Security.APIKeys.Frontend {
		frontend[k] = struct{}{}
	}
	signing = map[string]struct{}{}
	for _, k := range c.Security.SigningKeys {
		signing[k] = struct{}{}
	}
	if len(signing) == 0 {
		for k := range backend {
			signing[k] = struct{}{}
		}
	}
	return backend, frontend, signing
}
