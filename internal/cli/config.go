package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces the CLI environment, e.g. CHATCTL_SERVER
const envPrefix = "chatctl"

// Config holds CLI configuration
type Config struct {
	ServerURL string `envconfig:"SERVER" default:"http://localhost:5000"`
	User      string `envconfig:"USER"`
	UserFile  string `envconfig:"USER_FILE"`
	Output    string `envconfig:"OUTPUT" default:"text"`
	NoColor   bool   `envconfig:"NO_COLOR"`
	Verbose   bool   `ignored:"true"`
}

// LoadConfig reads CHATCTL_* variables into a Config
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if cfg.UserFile == "" {
		cfg.UserFile = defaultUserFile()
	}
	return &cfg, nil
}

// DefaultConfig returns the environment configuration, falling back to
// built-in defaults when the environment cannot be parsed
func DefaultConfig() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		return &Config{
			ServerURL: "http://localhost:5000",
			UserFile:  defaultUserFile(),
			Output:    "text",
		}
	}
	return cfg
}

// LoadUser loads the participant name from file if not already set
func (c *Config) LoadUser() error {
	if c.User != "" {
		return nil
	}

	data, err := os.ReadFile(c.UserFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // not joined yet
		}
		return err
	}

	c.User = strings.TrimSpace(string(data))
	return nil
}

// SaveUser remembers the joined participant for later commands
func (c *Config) SaveUser(name string) error {
	c.User = name

	dir := filepath.Dir(c.UserFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	return os.WriteFile(c.UserFile, []byte(name), 0600)
}

// Validate checks flag values that cobra cannot
func (c *Config) Validate() error {
	switch c.Output {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", c.Output)
	}
}

func defaultUserFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatctl/user"
	}
	return filepath.Join(home, ".chatctl", "user")
}
