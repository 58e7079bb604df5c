// Package entity contains the domain types of the live preview daemon.
package entity

import (
	"net/http"
	"time"
)

// StatResult is what the project store knows about a path.
type StatResult struct {
	Size    int64     `json:"size" zap:"size"`
	ModTime time.Time `json:"modTime" zap:"modTime"`
	IsDir   bool      `json:"isDir" zap:"isDir"`
}

// DirEntry is a single child of a directory in the project store.
type DirEntry struct {
	Name string `json:"name" zap:"name"`
	StatResult
}

// Response is a fully materialized reply from the virtual server.
type Response struct {
	Body       []byte
	Status     int
	StatusText string
	Headers    http.Header
}

// Header returns the first value of a response header.
func (r Response) Header(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}
