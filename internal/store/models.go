package store

import "errors"

// Membership is one user's durable relation to one board.
type Membership struct {
	Visible bool
	Role    string
}

// ErrBoardNotFound is returned when a board id has no row. A join against
// such a board is rejected by the caller.
var ErrBoardNotFound = errors.New("board not found")
