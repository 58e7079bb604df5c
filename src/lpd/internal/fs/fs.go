package fs

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/uber/live-preview/src/lpd/entity"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const _configKeyProject = "project"

// Module is the Fx module for this package.
var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(NewHostFS),
)

// ProjectFS is the project store the preview is served from.
// Paths are slash separated and rooted at the project, e.g. "/css/site.css".
type ProjectFS interface {
	Stat(name string) (entity.StatResult, error)
	ReadFile(name string) ([]byte, error)
	// ReadDir lists a directory sorted by name.
	ReadDir(name string) ([]entity.DirEntry, error)
	WriteFile(name string, data []byte) error
	MkdirAll(name string) error
	// Root is the disk directory backing the store, empty for an in-memory store.
	Root() string
}

// ProjectConfig is the project block of the config files.
type ProjectConfig struct {
	Root     string `yaml:"root"`
	InMemory bool   `yaml:"inMemory"`
}

// Params are the dependencies of the project store.
type Params struct {
	fx.In

	Config config.Provider
	Logger *zap.SugaredLogger
}

type projectFS struct {
	fs   afero.Fs
	root string
}

// New creates the project store described by the project config block.
func New(p Params) (ProjectFS, error) {
	var cfg ProjectConfig
	if err := p.Config.Get(_configKeyProject).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyProject, err)
	}

	if cfg.InMemory {
		p.Logger.Infow("serving in-memory project")
		return NewMemory(), nil
	}

	if cfg.Root == "" {
		return nil, fmt.Errorf("missing field %q in config", _configKeyProject+".root")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	p.Logger.Infow("serving project from disk", zap.String("root", root))
	return NewDisk(root), nil
}

// NewDisk returns a store rooted at a directory on disk.
func NewDisk(root string) ProjectFS {
	return &projectFS{
		fs:   afero.NewBasePathFs(afero.NewOsFs(), root),
		root: root,
	}
}

// NewMemory returns an empty store held in memory.
func NewMemory() ProjectFS {
	return &projectFS{fs: afero.NewMemMapFs()}
}

// NewHostFS returns the operating system filesystem, used for files outside the project such as logs.
func NewHostFS() afero.Fs {
	return afero.NewOsFs()
}

func (p *projectFS) Root() string { return p.root }

func (p *projectFS) Stat(name string) (entity.StatResult, error) {
	info, err := p.fs.Stat(clean(name))
	if err != nil {
		return entity.StatResult{}, err
	}
	return toStat(info), nil
}

func (p *projectFS) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(p.fs, clean(name))
}

func (p *projectFS) ReadDir(name string) ([]entity.DirEntry, error) {
	infos, err := afero.ReadDir(p.fs, clean(name))
	if err != nil {
		return nil, err
	}

	entries := make([]entity.DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, entity.DirEntry{
			Name:       info.Name(),
			StatResult: toStat(info),
		})
	}
	return entries, nil
}

func (p *projectFS) WriteFile(name string, data []byte) error {
	name = clean(name)
	if err := p.fs.MkdirAll(path.Dir(name), os.ModePerm); err != nil {
		return err
	}
	return afero.WriteFile(p.fs, name, data, 0644)
}

func (p *projectFS) MkdirAll(name string) error {
	return p.fs.MkdirAll(clean(name), os.ModePerm)
}

func clean(name string) string {
	return path.Clean("/" + filepath.ToSlash(name))
}

func toStat(info os.FileInfo) entity.StatResult {
	return entity.StatResult{
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
}
