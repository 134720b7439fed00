package chat

import "errors"

// ErrUnauthenticated is returned when an operation requires an
// established session and none exists. Transport handlers log and drop
// the event; it is never fatal to the connection.
var ErrUnauthenticated = errors.New("no established session")
