package multitable

import "errors"

var (
	// ErrDuplicate is returned when an insert is refused because some
	// index already holds a row with an equal key. It carries no
	// payload; use Upsert or Find to discover the existing row.
	ErrDuplicate = errors.New("row already exists in table")
)
