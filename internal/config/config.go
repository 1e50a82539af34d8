// Package config loads the keychain-access configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables.
const (
	PathEnv    = "KEYCHAIN_ACCESS_CONFIG"
	BackendEnv = "KEYCHAIN_ACCESS_BACKEND"
	LogEnv     = "KEYCHAIN_ACCESS_LOG"
)

// Store backends.
const (
	BackendKeychain = "keychain"
	BackendKeyring  = "keyring"
	BackendLocal    = "local"
	BackendAWSKMS   = "awskms"
)

// DefaultService is the default keyring service name.
const DefaultService = "keychain-access"

type (
	Config struct {
		Store StoreConfig `yaml:"store"`
		Log   LogConfig   `yaml:"log"`
	}

	StoreConfig struct {
		Backend string        `yaml:"backend"`
		Keyring KeyringConfig `yaml:"keyring"`
		Local   LocalConfig   `yaml:"local"`
		AWSKMS  AWSKMSConfig  `yaml:"awskms"`
	}

	KeyringConfig struct {
		Service  string   `yaml:"service"`
		Backends []string `yaml:"backends,omitempty"`
		FileDir  string   `yaml:"file_dir"`
	}

	LocalConfig struct {
		Dir string `yaml:"dir"`
	}

	AWSKMSConfig struct {
		Region  string `yaml:"region,omitempty"`
		Profile string `yaml:"profile,omitempty"`
	}

	LogConfig struct {
		Level string `yaml:"level,omitempty"`
	}
)

// Default returns the configuration used when no file is present.
func Default(goos string) Config {
	backend := BackendKeyring
	if goos == "darwin" {
		backend = BackendKeychain
	}

	return Config{
		Store: StoreConfig{
			Backend: backend,
			Keyring: KeyringConfig{
				Service: DefaultService,
				FileDir: "~/.local/share/keychain-access/keyring",
			},
			Local: LocalConfig{
				Dir: "~/.local/share/keychain-access/keys",
			},
		},
	}
}

// Load reads the configuration file named by the environment, applies the environment's
// overrides, and expands home-relative paths. A missing file at the default path yields the
// default configuration.
func Load(getenv func(string) string) (Config, error) {
	config := Default(runtime.GOOS)

	path, explicit := Path(getenv)

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &config); err != nil {
			return config, fmt.Errorf("failed to unmarshal config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	if backend := getenv(BackendEnv); backend != "" {
		config.Store.Backend = backend
	}

	if level := getenv(LogEnv); level != "" {
		config.Log.Level = level
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	home := getenv("HOME")
	config.Store.Keyring.FileDir = expand(config.Store.Keyring.FileDir, home)
	config.Store.Local.Dir = expand(config.Store.Local.Dir, home)

	return config, nil
}

// Path returns the path of the configuration file and whether it was set explicitly.
func Path(getenv func(string) string) (string, bool) {
	if path := getenv(PathEnv); path != "" {
		return path, true
	}

	dir := getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = filepath.Join(getenv("HOME"), ".config")
	}

	return filepath.Join(dir, "keychain-access", "config.yaml"), false
}

// Validate checks the configuration for unknown values.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendKeychain, BackendKeyring, BackendLocal, BackendAWSKMS:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Store.Backend == BackendKeyring && c.Store.Keyring.Service == "" {
		return errors.New("keyring backend requires a service name")
	}

	return nil
}

func expand(path, home string) string {
	if path == "~" {
		return home
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}

	return path
}
