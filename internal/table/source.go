package table

import "context"

// Loader fetches one page of rows for a server-backed table.
type Loader func(ctx context.Context, meta RequestMeta) (Page, error)

// Source selects how a table gets its rows. It is either a ClientSource or
// a ServerSource; the choice is fixed when the table is created.
type Source interface {
	mode() Mode
}

// Mode names the pagination strategy of a table.
type Mode string

const (
	ModeClient Mode = "client"
	ModeServer Mode = "server"
)

// ClientSource holds the full row set in memory. The table filters, sorts,
// and slices it locally.
type ClientSource struct {
	Rows []Row
}

func (ClientSource) mode() Mode { return ModeClient }

// ServerSource treats its rows as the current page and asks Loader for every
// other page. Rows and Total seed the table before the first load.
type ServerSource struct {
	Loader Loader
	Rows   []Row
	Total  int
}

func (ServerSource) mode() Mode { return ModeServer }
