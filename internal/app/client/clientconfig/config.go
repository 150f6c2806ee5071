// internal/app/client/clientconfig/config.go
//
// Package clientconfig loads the terminal wizard's settings from a YAML
// file, ~/.planwizard.yaml unless told otherwise. A missing file means
// defaults; the signed-in user must still be named somewhere, either in
// the file or on the command line.
package clientconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dalemusser/planhub/internal/domain/models"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name in the user's home directory.
const FileName = ".planwizard.yaml"

// DefaultServer is used when the file does not name one.
const DefaultServer = "http://localhost:8080"

// User is the identity presented at sign-in.
type User struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	PhotoURL string `yaml:"photo_url,omitempty"`
	Age      int    `yaml:"age,omitempty"`
	Gender   string `yaml:"gender,omitempty"`
}

// Config models ~/.planwizard.yaml.
type Config struct {
	Server string `yaml:"server"`
	User   User   `yaml:"user"`
	// Tags offered on the filters step.
	Tags []string `yaml:"tags,omitempty"`
}

// Snapshot returns the user as the server expects it.
func (u User) Snapshot() models.UserSnapshot {
	return models.UserSnapshot{
		ID:       u.ID,
		Name:     u.Name,
		PhotoURL: u.PhotoURL,
		Age:      u.Age,
		Gender:   u.Gender,
	}
}

// DefaultTags are offered when the file names none.
var DefaultTags = []string{"outdoors", "food", "music", "games", "sports", "study", "art"}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Server: DefaultServer,
		Tags:   append([]string(nil), DefaultTags...),
	}
}

// DefaultPath returns ~/.planwizard.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: home dir: %w", err)
	}
	return filepath.Join(home, FileName), nil
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Server = strings.TrimRight(strings.TrimSpace(c.Server), "/")
	if c.Server == "" {
		c.Server = DefaultServer
	}
	c.User.ID = strings.TrimSpace(c.User.ID)
	c.User.Name = strings.TrimSpace(c.User.Name)
	c.User.Gender = strings.ToLower(strings.TrimSpace(c.User.Gender))
	if len(c.Tags) == 0 {
		c.Tags = append([]string(nil), DefaultTags...)
	}
}

// Validate checks that a user is named.
func (c Config) Validate() error {
	switch {
	case c.User.ID == "":
		return errors.New("config: user.id is required")
	case c.User.Name == "":
		return errors.New("config: user.name is required")
	}
	return nil
}

// Save writes cfg to path, creating or replacing it.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
