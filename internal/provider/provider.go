// Package provider fetches menus from cafeteria websites and keeps the set of
// known providers.
package provider

import (
	"context"
	"errors"
	"fmt"

	"biteboard/internal/menu"
)

// Provider knows how to fetch the menu of one cafeteria.
//
// Fetch returns the items dated exactly date, in page order. An empty slice
// means the cafeteria publishes nothing for that day. Network failures and
// non-2xx responses come back as *FetchError.
type Provider interface {
	Name() string
	Link() string
	Thumbnail() string
	Fetch(ctx context.Context, date menu.Date) ([]menu.Item, error)
}

var (
	ErrDuplicateProvider = errors.New("provider already registered")
	ErrUnknownProvider   = errors.New("unknown provider")
)

// FetchError reports a failed menu download.
type FetchError struct {
	Provider string
	URL      string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("fetch %s menu: %s: HTTP %d", e.Provider, e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s menu: %s: %v", e.Provider, e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s menu: %s: failed", e.Provider, e.URL)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Timeout reports whether the fetch ran out of time.
func (e *FetchError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IsFetchError reports whether err carries a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
