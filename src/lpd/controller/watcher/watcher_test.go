package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/internal/fs"
	"github.com/uber/live-preview/src/lpd/repository/document"
	"go.uber.org/config"
	"go.uber.org/fx/fxtest"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

const _waitFor = 3 * time.Second

// reloads counts Reload calls and stubs the rest of the protocol.
type reloads struct {
	mu    sync.Mutex
	count int
}

func (r *reloads) OnConnect(ctx context.Context, clientID, url string)     {}
func (r *reloads) OnMessage(ctx context.Context, clientID, message string) {}
func (r *reloads) OnClose(ctx context.Context, clientID string)            {}

func (r *reloads) Reload(ctx context.Context, clientIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

func (r *reloads) TriggerFn(ctx context.Context, name string, args any, clientIDs []string) error {
	return nil
}

func (r *reloads) Connections(ctx context.Context) ([]*entity.ClientConnection, error) {
	return nil, nil
}

func (r *reloads) CloseAll(ctx context.Context) error { return nil }

func (r *reloads) get() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func newParams(t *testing.T, yaml string, store fs.ProjectFS) (Params, *reloads, *fxtest.Lifecycle) {
	provider, err := config.NewYAML(config.Source(strings.NewReader(yaml)))
	require.NoError(t, err)
	lc := fxtest.NewLifecycle(t)
	r := &reloads{}
	return Params{
		Config:    provider,
		Logger:    zap.NewNop().Sugar(),
		Stats:     tally.NoopScope,
		Lifecycle: lc,
		FS:        store,
		Documents: document.New(document.Params{FS: store, Logger: zap.NewNop().Sugar()}),
		Protocol:  r,
	}, r, lc
}

func writeFile(t *testing.T, name, contents string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(contents), 0o644))
}

func TestWatcher_RefreshesAndReloads(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), "<p>old</p>\n")
	writeFile(t, filepath.Join(root, "css", "site.css"), "p {}\n")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref\n")

	p, r, lc := newParams(t, "watcher:\n  debounce: 20ms\n", fs.NewDisk(root))
	c, err := New(p)
	require.NoError(t, err)
	require.True(t, c.Watching())

	u, err := p.Documents.Open(ctx, "/index.html")
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	watched := c.(*controller).watcher.WatchList()
	assert.ElementsMatch(t, []string{root, filepath.Join(root, "css")}, watched)

	writeFile(t, filepath.Join(root, "index.html"), "<p>new</p>\n")
	assert.Eventually(t, func() bool {
		buf, err := p.Documents.Get(ctx, u)
		return err == nil && buf.Text() == "<p>new</p>\n"
	}, _waitFor, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return r.get() >= 1 }, _waitFor, 5*time.Millisecond)

	before := r.get()
	writeFile(t, filepath.Join(root, "css", "site.css"), "p { color: red }\n")
	assert.Eventually(t, func() bool { return r.get() > before }, _waitFor, 5*time.Millisecond)
}

func TestWatcher_Debounce(t *testing.T) {
	root := t.TempDir()
	name := filepath.Join(root, "index.html")
	writeFile(t, name, "0")

	p, r, lc := newParams(t, "watcher:\n  debounce: 200ms\n", fs.NewDisk(root))
	_, err := New(p)
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	for _, contents := range []string{"1", "2", "3"} {
		require.NoError(t, os.WriteFile(name, []byte(contents), 0o644))
	}
	assert.Eventually(t, func() bool { return r.get() == 1 }, _waitFor, 5*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, r.get())
}

func TestWatcher_NewDirectories(t *testing.T) {
	root := t.TempDir()
	p, _, lc := newParams(t, "watcher:\n  debounce: 10ms\n", fs.NewDisk(root))
	c, err := New(p)
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	assert.Eventually(t, func() bool {
		for _, w := range c.(*controller).watcher.WatchList() {
			if w == filepath.Join(root, "docs") {
				return true
			}
		}
		return false
	}, _waitFor, 5*time.Millisecond)
}

func TestNew(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		p, _, _ := newParams(t, "watcher:\n  enabled: false\n", fs.NewDisk(t.TempDir()))
		c, err := New(p)
		require.NoError(t, err)
		assert.False(t, c.Watching())
	})

	t.Run("in-memory project", func(t *testing.T) {
		p, _, _ := newParams(t, "other: 1\n", fs.NewMemory())
		c, err := New(p)
		require.NoError(t, err)
		assert.False(t, c.Watching())
	})

	t.Run("negative debounce", func(t *testing.T) {
		p, _, _ := newParams(t, "watcher:\n  debounce: -1s\n", fs.NewMemory())
		_, err := New(p)
		assert.Error(t, err)
	})

	t.Run("malformed block", func(t *testing.T) {
		p, _, _ := newParams(t, "watcher:\n  enabled: sometimes\n", fs.NewMemory())
		_, err := New(p)
		assert.Error(t, err)
	})
}

func TestChangedOutsideRoot(t *testing.T) {
	root := t.TempDir()
	p, r, _ := newParams(t, "watcher:\n  enabled: false\n", fs.NewDisk(root))
	c, err := New(p)
	require.NoError(t, err)

	c.(*controller).changed(context.Background(), filepath.Join(filepath.Dir(root), "elsewhere.html"))
	assert.Zero(t, r.get())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
