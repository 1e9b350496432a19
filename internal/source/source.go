// Package source fetches recruitment signals from the configured upstreams
// and normalizes them to the shared item shape. Each adapter owns one
// source: it calls the upstream, drops records too malformed to use, and
// maps the rest into model.Item.
package source

import (
	"context"

	"github.com/rekrytera/signals-cli/internal/model"
)

// Options control one fetch.
type Options struct {
	Query      string
	Location   string
	Limit      int
	Categories []string // google_places sub-queries
}

// Adapter fetches and normalizes items from one source.
type Adapter interface {
	Source() model.Source
	Fetch(ctx context.Context, opts Options) ([]model.Item, error)
}
