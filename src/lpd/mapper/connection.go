// Package mapper converts between entities, repository models and wire formats.
package mapper

import (
	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/model"
)

// ConnectionToModel converts a ClientConnection entity to its repository model.
func ConnectionToModel(c *entity.ClientConnection) *model.Connection {
	return &model.Connection{
		ClientID:    c.ClientID,
		URL:         c.URL,
		ConnectedAt: c.ConnectedAt,
	}
}

// ModelToConnection converts a repository model to a ClientConnection entity.
func ModelToConnection(m *model.Connection) *entity.ClientConnection {
	return &entity.ClientConnection{
		ClientID:    m.ClientID,
		URL:         m.URL,
		ConnectedAt: m.ConnectedAt,
	}
}
