package core

import (
	"fmt"
	"os"
	"path/filepath"

	uber_config "go.uber.org/config"
	"go.uber.org/fx"
)

const (
	_envConfigDir     = "LPD_CONFIG_DIR"
	_defaultConfigDir = "src/lpd/config"
	_metaFile         = "meta.yaml"
)

// ConfigModule provides the merged YAML configuration.
var ConfigModule = fx.Options(
	fx.Provide(NewConfig),
)

// Config wraps the merged provider so it can be named in logs.
type Config struct {
	provider uber_config.Provider
}

// Get returns the value at the given dotted path.
func (c Config) Get(path string) uber_config.Value {
	return c.provider.Get(path)
}

// Name implements config.Provider.
func (c Config) Name() string {
	return "config"
}

// NewConfig loads the files listed in meta.yaml, in order, from the config directory.
// Files that do not exist are skipped so that environment specific overlays stay optional.
func NewConfig() (uber_config.Provider, error) {
	return newConfigFromDir(getConfigDir())
}

func newConfigFromDir(configDir string) (uber_config.Provider, error) {
	files, err := listedFiles(configDir)
	if err != nil {
		return nil, err
	}

	options := make([]uber_config.YAMLOption, 0, len(files)+1)
	for _, file := range files {
		options = append(options, uber_config.File(file))
	}
	options = append(options, uber_config.Expand(os.LookupEnv))

	provider, err := uber_config.NewYAML(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return Config{provider: provider}, nil
}

// listedFiles returns the existing files named by meta.yaml, as full paths.
func listedFiles(configDir string) ([]string, error) {
	meta, err := uber_config.NewYAML(
		uber_config.File(filepath.Join(configDir, _metaFile)),
		uber_config.Expand(os.LookupEnv),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load meta configuration: %w", err)
	}

	var names []string
	if err := meta.Get("files").Populate(&names); err != nil {
		return nil, fmt.Errorf("failed to read files list from %s: %w", _metaFile, err)
	}

	var found []string
	for _, name := range names {
		full := filepath.Join(configDir, name)
		if _, err := os.Stat(full); err == nil {
			found = append(found, full)
		}
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("no configuration files found in %s", configDir)
	}
	return found, nil
}

// getConfigDir returns the configuration directory, relative to the workspace root unless overridden.
func getConfigDir() string {
	if configDir := os.Getenv(_envConfigDir); configDir != "" {
		return configDir
	}
	return _defaultConfigDir
}
