package table

import "errors"

var (
	// ErrNoSource is returned when a table is created without a data source.
	ErrNoSource = errors.New("table has no data source")

	// ErrNoLoader is returned when a server source has no loader.
	ErrNoLoader = errors.New("server source has no loader")

	// ErrInvalidSortColumn is returned when sorting by an unknown or
	// unsortable column.
	ErrInvalidSortColumn = errors.New("invalid sort column")

	// ErrInvalidPage is returned for a negative page index.
	ErrInvalidPage = errors.New("invalid page index")

	// ErrInvalidPageSize is returned for a non-positive page size.
	ErrInvalidPageSize = errors.New("invalid page size")

	// ErrStaleResponse is returned by a load whose response arrived after a
	// newer load was issued. The response is discarded.
	ErrStaleResponse = errors.New("stale table response discarded")

	// ErrInvalidState is returned when an encoded table state cannot be parsed.
	ErrInvalidState = errors.New("invalid table state")
)
