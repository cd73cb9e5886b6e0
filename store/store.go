// Package store keeps parsed pages for lookup by title.
package store

import (
	"context"
	"errors"

	"github.com/dhamidi/wikidump/dump"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("wikidump.store")

// ErrNotFound is returned by Get when no page has the requested title.
var ErrNotFound = errors.New("page not found")

// Store looks up pages by title. Titles are compared in their normalized
// form, see dump.NormalizeTitle.
type Store interface {
	Get(ctx context.Context, title string) (*dump.Page, error)
	Close() error
}
