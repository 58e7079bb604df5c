// Package document keeps the project documents that are open for live editing.
package document

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"

	"github.com/uber/live-preview/src/lpd/internal/errors"
	"github.com/uber/live-preview/src/lpd/internal/fs"
	"github.com/uber/live-preview/src/lpd/internal/instrument"
	"github.com/uber/live-preview/src/lpd/internal/textbuffer"
	"github.com/uber/live-preview/src/lpd/model"
	"go.lsp.dev/uri"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Repository is a store of open documents, one of which may be live in the preview.
type Repository interface {
	// Open reads a project file and instruments it, or returns the already open document.
	Open(ctx context.Context, urlPath string) (uri.URI, error)
	Get(ctx context.Context, u uri.URI) (*textbuffer.Buffer, error)
	// SetLive makes an open document the one edits from the preview apply to.
	SetLive(ctx context.Context, u uri.URI) error
	CurrentLiveDocument(ctx context.Context) (*textbuffer.Buffer, bool)
	// Refresh reloads an open document from the project store unless it holds unsaved changes.
	// It reports whether the document was reloaded.
	Refresh(ctx context.Context, urlPath string) (bool, error)
	// RetagLive gives tag ids to elements of the live document that have none, e.g. copies made by an edit.
	// It returns the number of new ids.
	RetagLive(ctx context.Context) int
	Save(ctx context.Context, u uri.URI) error
	Close(ctx context.Context, u uri.URI) error
	// Render returns the live content of an open document with tag ids written into its elements.
	Render(ctx context.Context, urlPath string) ([]byte, bool)
}

// Params are the dependencies of the document repository.
type Params struct {
	fx.In

	FS     fs.ProjectFS
	Logger *zap.SugaredLogger
}

type repository struct {
	mu       sync.Mutex
	memstore map[uri.URI]*model.Document
	live     uri.URI
	// nextID is the tag id given to the next element found in any document.
	nextID   int
	fs       fs.ProjectFS
	logger   *zap.SugaredLogger
}

// New returns a document repository over the project store.
func New(p Params) Repository {
	return &repository{
		memstore: make(map[uri.URI]*model.Document),
		nextID:   1,
		fs:       p.FS,
		logger:   p.Logger.With("plugin", "documents"),
	}
}

// URI returns the identity of the document at a project path.
func URI(urlPath string) uri.URI {
	return uri.File(path.Clean("/" + urlPath))
}

func (r *repository) Open(ctx context.Context, urlPath string) (uri.URI, error) {
	urlPath = path.Clean("/" + urlPath)
	u := URI(urlPath)

	r.mu.Lock()
	_, ok := r.memstore[u]
	r.mu.Unlock()
	if ok {
		return u, nil
	}

	body, err := r.fs.ReadFile(urlPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", urlPath, err)
	}
	text := string(body)
	tags := instrument.Tags(text)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memstore[u]; ok {
		return u, nil
	}
	for i := range tags {
		tags[i].TagID = r.newID()
	}
	buf := textbuffer.New(text, tags)
	r.memstore[u] = &model.Document{
		URI:          u,
		Path:         urlPath,
		Buffer:       buf,
		SavedVersion: buf.Version(),
	}
	r.logger.Debugw("opened document", zap.String("uri", string(u)), zap.Int("tags", len(buf.Marks())))
	return u, nil
}

// newID allocates a tag id that no open document uses. Callers hold r.mu.
func (r *repository) newID() string {
	id := strconv.Itoa(r.nextID)
	r.nextID++
	return id
}

func (r *repository) Get(ctx context.Context, u uri.URI) (*textbuffer.Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.memstore[u]
	if !ok {
		return nil, &errors.DocumentNotFoundError{URI: u}
	}
	return doc.Buffer, nil
}

func (r *repository) SetLive(ctx context.Context, u uri.URI) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.memstore[u]; !ok {
		return &errors.DocumentNotFoundError{URI: u}
	}
	r.live = u
	return nil
}

func (r *repository) CurrentLiveDocument(ctx context.Context) (*textbuffer.Buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.memstore[r.live]
	if !ok {
		return nil, false
	}
	return doc.Buffer, true
}

func (r *repository) Refresh(ctx context.Context, urlPath string) (bool, error) {
	u := URI(urlPath)

	r.mu.Lock()
	doc, ok := r.memstore[u]
	dirty := ok && doc.Dirty()
	r.mu.Unlock()
	if !ok {
		return false, nil
	}
	if dirty {
		r.logger.Infow("keeping unsaved document", zap.String("uri", string(u)))
		return false, nil
	}

	body, err := r.fs.ReadFile(doc.Path)
	if err != nil {
		return false, fmt.Errorf("refreshing %s: %w", doc.Path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	doc.Buffer.SetText(string(body))
	r.retag(doc)
	doc.SavedVersion = doc.Buffer.Version()
	return true, nil
}

func (r *repository) RetagLive(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.memstore[r.live]
	if !ok {
		return 0
	}
	return r.retag(doc)
}

// retag marks every element whose span is not tracked yet with a fresh id. Callers hold r.mu.
func (r *repository) retag(doc *model.Document) int {
	text, marks := doc.Buffer.Snapshot()
	type span struct{ start, end int }
	tracked := make(map[span]bool, len(marks))
	for _, m := range marks {
		tracked[span{m.Start, m.End}] = true
	}

	added := 0
	for _, t := range instrument.Tags(text) {
		if tracked[span{t.Start, t.End}] {
			continue
		}
		if doc.Buffer.AddMark(textbuffer.Mark{TagID: r.newID(), Start: t.Start, End: t.End}) {
			added++
		}
	}
	return added
}

func (r *repository) Save(ctx context.Context, u uri.URI) error {
	r.mu.Lock()
	doc, ok := r.memstore[u]
	r.mu.Unlock()
	if !ok {
		return &errors.DocumentNotFoundError{URI: u}
	}

	version := doc.Buffer.Version()
	if err := r.fs.WriteFile(doc.Path, []byte(doc.Buffer.Text())); err != nil {
		return fmt.Errorf("saving %s: %w", doc.Path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	doc.SavedVersion = version
	return nil
}

func (r *repository) Close(ctx context.Context, u uri.URI) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.memstore[u]; !ok {
		return &errors.DocumentNotFoundError{URI: u}
	}
	delete(r.memstore, u)
	if r.live == u {
		r.live = ""
	}
	return nil
}

func (r *repository) Render(ctx context.Context, urlPath string) ([]byte, bool) {
	r.mu.Lock()
	doc, ok := r.memstore[URI(urlPath)]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	return []byte(instrument.Annotate(doc.Buffer.Snapshot())), true
}
