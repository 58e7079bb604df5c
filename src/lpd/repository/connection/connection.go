package connection

import (
	"context"
	"sort"
	"sync"

	"github.com/uber-go/tally"
	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/internal/errors"
	"github.com/uber/live-preview/src/lpd/mapper"
	"github.com/uber/live-preview/src/lpd/model"
)

// Repository keeps the host's bookkeeping of connected preview peers.
type Repository interface {
	Get(ctx context.Context, clientID string) (*entity.ClientConnection, error)
	GetAll(ctx context.Context) ([]*entity.ClientConnection, error)
	Set(ctx context.Context, conn *entity.ClientConnection) error
	Delete(ctx context.Context, clientID string) error
	Count(ctx context.Context) (int, error)
}

type repository struct {
	mu       sync.Mutex
	memstore map[string]*model.Connection
	stats    tally.Scope
}

// New returns a repository to a key-value ClientConnection data store.
func New(stats tally.Scope) Repository {
	return &repository{
		memstore: make(map[string]*model.Connection),
		stats:    stats,
	}
}

// Get returns the connection recorded for clientID.
func (r *repository) Get(ctx context.Context, clientID string) (*entity.ClientConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memstore[clientID]
	if !ok {
		return nil, &errors.ClientNotFoundError{ClientID: clientID}
	}
	return mapper.ModelToConnection(m), nil
}

// GetAll returns every recorded connection, oldest first.
func (r *repository) GetAll(ctx context.Context) ([]*entity.ClientConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := make([]*entity.ClientConnection, 0, len(r.memstore))
	for _, m := range r.memstore {
		found = append(found, mapper.ModelToConnection(m))
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].ConnectedAt.Equal(found[j].ConnectedAt) {
			return found[i].ConnectedAt.Before(found[j].ConnectedAt)
		}
		return found[i].ClientID < found[j].ClientID
	})
	return found, nil
}

// Set records a connection under its client id, replacing any previous record.
func (r *repository) Set(ctx context.Context, conn *entity.ClientConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn == nil {
		return errors.New("can't save nil connection")
	}
	if conn.ClientID == "" {
		return errors.New("can't save connection without client id")
	}
	r.memstore[conn.ClientID] = mapper.ConnectionToModel(conn)
	r.stats.Gauge("active_connections").Update(float64(len(r.memstore)))
	return nil
}

// Delete removes the connection recorded for clientID. Unknown ids are ignored.
func (r *repository) Delete(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.memstore, clientID)
	r.stats.Gauge("active_connections").Update(float64(len(r.memstore)))
	return nil
}

// Count returns the number of recorded connections.
func (r *repository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.memstore), nil
}
