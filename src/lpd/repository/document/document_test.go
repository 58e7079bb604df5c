package document

import (
	"context"
	iofs "io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/live-preview/src/lpd/internal/errors"
	"github.com/uber/live-preview/src/lpd/internal/fs"
	"github.com/uber/live-preview/src/lpd/internal/fs/fsmock"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const _page = "<ul>\n  <li>a</li>\n</ul>\n"

func newTestRepository(t *testing.T, files map[string]string) (Repository, fs.ProjectFS) {
	store := fs.NewMemory()
	for name, contents := range files {
		require.NoError(t, store.WriteFile(name, []byte(contents)))
	}
	return New(Params{FS: store, Logger: zap.NewNop().Sugar()}), store
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t, map[string]string{"/index.html": _page})

	u, err := repo.Open(ctx, "index.html")
	require.NoError(t, err)
	assert.Equal(t, uri.File("/index.html"), u)

	buf, err := repo.Get(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, _page, buf.Text())
	r, ok := buf.TagRange("2")
	require.True(t, ok)
	assert.Equal(t, protocol.Position{Line: 1, Character: 2}, r.Range.Start)

	again, err := repo.Open(ctx, "/index.html")
	require.NoError(t, err)
	assert.Equal(t, u, again)
	same, err := repo.Get(ctx, again)
	require.NoError(t, err)
	assert.Same(t, buf, same, "opening twice keeps the live buffer")

	_, err = repo.Open(ctx, "/missing.html")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestLiveDocument(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t, map[string]string{"/index.html": _page})

	_, ok := repo.CurrentLiveDocument(ctx)
	assert.False(t, ok)

	err := repo.SetLive(ctx, URI("/index.html"))
	assert.True(t, errors.IsNotFound(err))

	u, err := repo.Open(ctx, "/index.html")
	require.NoError(t, err)
	require.NoError(t, repo.SetLive(ctx, u))

	buf, ok := repo.CurrentLiveDocument(ctx)
	require.True(t, ok)
	assert.Equal(t, _page, buf.Text())

	require.NoError(t, repo.Close(ctx, u))
	_, ok = repo.CurrentLiveDocument(ctx)
	assert.False(t, ok)
	assert.True(t, errors.IsNotFound(repo.Close(ctx, u)))
	_, err = repo.Get(ctx, u)
	assert.True(t, errors.IsNotFound(err))
}

func TestSaveAndRefresh(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepository(t, map[string]string{"/index.html": _page})
	u, err := repo.Open(ctx, "/index.html")
	require.NoError(t, err)
	buf, err := repo.Get(ctx, u)
	require.NoError(t, err)

	t.Run("clean document follows the store", func(t *testing.T) {
		require.NoError(t, store.WriteFile("/index.html", []byte("<!-- x -->\n"+_page)))

		reloaded, err := repo.Refresh(ctx, "/index.html")
		require.NoError(t, err)
		assert.True(t, reloaded)
		assert.Equal(t, "<!-- x -->\n"+_page, buf.Text())

		r, ok := buf.TagRange("2")
		require.True(t, ok)
		assert.Equal(t, protocol.Position{Line: 2, Character: 2}, r.Range.Start)
	})

	t.Run("unsaved changes are kept", func(t *testing.T) {
		require.NoError(t, buf.ReplaceRange("", protocol.Position{}, protocol.Position{Line: 1}))
		require.NoError(t, store.WriteFile("/index.html", []byte("<p>other</p>")))

		reloaded, err := repo.Refresh(ctx, "/index.html")
		require.NoError(t, err)
		assert.False(t, reloaded)
		assert.Equal(t, _page, buf.Text())
	})

	t.Run("save writes the buffer back", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, u))

		body, err := store.ReadFile("/index.html")
		require.NoError(t, err)
		assert.Equal(t, _page, string(body))

		reloaded, err := repo.Refresh(ctx, "/index.html")
		require.NoError(t, err)
		assert.True(t, reloaded)
	})

	t.Run("unknown documents", func(t *testing.T) {
		reloaded, err := repo.Refresh(ctx, "/other.html")
		require.NoError(t, err)
		assert.False(t, reloaded)
		assert.True(t, errors.IsNotFound(repo.Save(ctx, URI("/other.html"))))
	})
}

func TestStoreFailures(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := fsmock.NewMockProjectFS(ctrl)
	repo := New(Params{FS: store, Logger: zap.NewNop().Sugar()})

	store.EXPECT().ReadFile("/index.html").Return([]byte(_page), nil)
	u, err := repo.Open(ctx, "/index.html")
	require.NoError(t, err)

	store.EXPECT().WriteFile("/index.html", []byte(_page)).Return(iofs.ErrPermission)
	assert.ErrorIs(t, repo.Save(ctx, u), iofs.ErrPermission)

	store.EXPECT().ReadFile("/index.html").Return(nil, iofs.ErrPermission)
	_, err = repo.Refresh(ctx, "/index.html")
	assert.ErrorIs(t, err, iofs.ErrPermission)
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t, map[string]string{"/index.html": _page})

	_, ok := repo.Render(ctx, "/index.html")
	assert.False(t, ok)

	_, err := repo.Open(ctx, "/index.html")
	require.NoError(t, err)

	body, ok := repo.Render(ctx, "/index.html")
	require.True(t, ok)
	assert.Equal(t, "<ul data-lp-id=\"1\">\n  <li data-lp-id=\"2\">a</li>\n</ul>\n", string(body))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRetagLive(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepository(t, map[string]string{"/index.html": _page})
	assert.Zero(t, repo.RetagLive(ctx))

	u, err := repo.Open(ctx, "/index.html")
	require.NoError(t, err)
	require.NoError(t, repo.SetLive(ctx, u))
	buf, ok := repo.CurrentLiveDocument(ctx)
	require.True(t, ok)
	assert.Zero(t, repo.RetagLive(ctx))

	require.NoError(t, buf.ReplaceRange("\n  <li>a</li>", protocol.Position{Line: 1, Character: 12}, protocol.Position{Line: 1, Character: 12}))
	assert.Equal(t, 1, repo.RetagLive(ctx))

	r, ok := buf.TagRange("3")
	require.True(t, ok)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 2, Character: 2},
		End:   protocol.Position{Line: 2, Character: 12},
	}, r.Range)

	t.Run("refresh tags new elements", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, u))
		require.NoError(t, store.WriteFile("/index.html", []byte("<ul>\n  <li>a</li>\n  <li>a</li>\n</ul>\n<p>new</p>\n")))

		reloaded, err := repo.Refresh(ctx, "/index.html")
		require.NoError(t, err)
		require.True(t, reloaded)

		r, ok := buf.TagRange("4")
		require.True(t, ok)
		assert.Equal(t, protocol.Position{Line: 4, Character: 0}, r.Range.Start)
		assert.Len(t, buf.Marks(), 4)
	})
}

func TestOpen_IDsUniqueAcrossDocuments(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepository(t, map[string]string{
		"/index.html": _page,
		"/about.html": "<div>\n  <p>about</p>\n</div>\n",
	})

	index, err := repo.Open(ctx, "/index.html")
	require.NoError(t, err)
	about, err := repo.Open(ctx, "/about.html")
	require.NoError(t, err)

	body, ok := repo.Render(ctx, "/about.html")
	require.True(t, ok)
	assert.Equal(t, "<div data-lp-id=\"3\">\n  <p data-lp-id=\"4\">about</p>\n</div>\n", string(body))

	indexBuf, err := repo.Get(ctx, index)
	require.NoError(t, err)
	aboutBuf, err := repo.Get(ctx, about)
	require.NoError(t, err)
	_, ok = indexBuf.TagRange("3")
	assert.False(t, ok)
	_, ok = aboutBuf.TagRange("1")
	assert.False(t, ok)

	t.Run("refresh keeps allocating fresh ids", func(t *testing.T) {
		require.NoError(t, store.WriteFile("/index.html", []byte(_page+"<p>new</p>\n")))
		reloaded, err := repo.Refresh(ctx, "/index.html")
		require.NoError(t, err)
		require.True(t, reloaded)

		r, ok := indexBuf.TagRange("5")
		require.True(t, ok)
		assert.Equal(t, protocol.Position{Line: 3, Character: 0}, r.Range.Start)
		_, ok = aboutBuf.TagRange("5")
		assert.False(t, ok)
	})
}
