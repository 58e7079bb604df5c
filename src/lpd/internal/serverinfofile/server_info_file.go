package serverinfofile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const _configKeyInfoFile = "serverInfoFilePath"

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// ServerInfoFile manages the contents of a single server info file.
// Tools such as lppeer read it to find the preview address and relay url of a running daemon.
type ServerInfoFile interface {
	UpdateField(key string, value string) error
	// Field returns the value last written for key.
	Field(key string) (string, bool)
}

type module struct {
	infofile     string
	fs           afero.Fs
	logger       *zap.SugaredLogger
	fileContents map[string]string
	mu           sync.Mutex
}

// Params define values to be used by ServerInfoFile.
type Params struct {
	fx.In

	Config    config.Provider
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
	FS        afero.Fs
}

// New creates a new ServerInfoFile. The file is removed when the application stops.
func New(p Params) (ServerInfoFile, error) {
	m := module{
		fs:           p.FS,
		logger:       p.Logger,
		fileContents: make(map[string]string),
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: m.OnStop,
	})

	return &m, nil
}

func (m *module) OnStop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.fileContents) == 0 {
		return nil
	}
	if err := m.fs.Remove(m.infofile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *module) UpdateField(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fileContents[key] = value
	jsonOutput, err := json.Marshal(m.fileContents)
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	if err := m.fs.MkdirAll(filepath.Dir(m.infofile), 0755); err != nil {
		return fmt.Errorf("creating info file directory: %w", err)
	}
	if err := afero.WriteFile(m.fs, m.infofile, jsonOutput, 0644); err != nil {
		return fmt.Errorf("creating info file: %w", err)
	}
	m.logger.Infow("connection info saved", zap.String("file", m.infofile), zap.String(key, value))
	return nil
}

func (m *module) Field(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.fileContents[key]
	return v, ok
}

func (m *module) processConfig(cfg config.Provider) error {
	val := cfg.Get(_configKeyInfoFile)
	if err := val.Populate(&m.infofile); err != nil {
		// incorrectly formatted config
		return fmt.Errorf("getting config field %q: %w", _configKeyInfoFile, err)
	}

	if m.infofile == "" {
		// yaml is missing either the key or value
		return fmt.Errorf("missing field %q in config", _configKeyInfoFile)
	}

	return nil
}

// Read returns the fields of an info file written by a running daemon.
func Read(fs afero.Fs, name string) (map[string]string, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, fmt.Errorf("reading info file: %w", err)
	}
	fields := make(map[string]string)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parsing info file %s: %w", name, err)
	}
	return fields, nil
}
