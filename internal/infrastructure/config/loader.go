// Package config loads and saves ~/.nixsay/config.yaml.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/nixsay/assets"
	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/pkg/filesystem"
	"github.com/doeshing/nixsay/internal/ports"
)

// EnvConfigPath overrides the configuration file location.
const EnvConfigPath = "NIXSAY_CONFIG"

// FileLoader loads YAML configuration from ~/.nixsay/config.yaml (overridable via
// NIXSAY_CONFIG).
type FileLoader struct {
	overridePath string
	defaults     []byte
}

// NewFileLoader builds a new loader. An empty path selects the default location.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path, defaults: assets.DefaultConfigYAML}
}

// Load implements ports.ConfigProvider. A missing file is created from the embedded
// defaults; keys absent from an existing file keep their default values.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	cfg, err := l.Defaults()
	if err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if err := l.writeRaw(path, l.defaults); err != nil {
				return domain.Config{}, err
			}
			return cfg, nil
		}
		return domain.Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	return cfg, nil
}

// Defaults returns the embedded default configuration.
func (l *FileLoader) Defaults() (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(l.defaults, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse default config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg atomically.
func (l *FileLoader) Save(cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return l.writeRaw(l.Path(), raw)
}

// Reset replaces the file with the commented defaults.
func (l *FileLoader) Reset() error {
	return l.writeRaw(l.Path(), l.defaults)
}

// Path returns the file the loader reads.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filesystem.StatePath("config.yaml")
}

func (l *FileLoader) writeRaw(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return filesystem.WriteFileAtomic(path, raw, domain.SecureFilePermissions)
}

// Get returns the value at a dotted key such as "cache.backend".
func Get(cfg domain.Config, key string) (string, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return "", err
	}
	node, err := walk(&root, key)
	if err != nil {
		return "", err
	}
	if node.Kind == yaml.ScalarNode {
		return node.Value, nil
	}
	out, err := yaml.Marshal(node)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Set returns a copy of cfg with the scalar at key replaced by value. The value is
// parsed with YAML rules, so "true", "300" and "0.7" land in typed fields.
func Set(cfg domain.Config, key, value string) (domain.Config, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return domain.Config{}, err
	}
	node, err := walk(&root, key)
	if err != nil {
		return domain.Config{}, err
	}
	if node.Kind != yaml.ScalarNode {
		return domain.Config{}, fmt.Errorf("%s is a section, not a value", key)
	}
	node.Value = value
	node.Tag = ""
	node.Style = 0

	var out domain.Config
	if err := root.Decode(&out); err != nil {
		return domain.Config{}, fmt.Errorf("set %s: %w", key, err)
	}
	return out, nil
}

func walk(root *yaml.Node, key string) (*yaml.Node, error) {
	node := root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	for _, part := range strings.Split(key, ".") {
		if node.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("unknown config key %q", key)
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == part {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("unknown config key %q", key)
		}
		node = next
	}
	return node, nil
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
