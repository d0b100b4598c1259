package core

import "errors"

// ErrTradeNotFound is returned when a trade identifier has no cached
// parameters or persisted record
var ErrTradeNotFound = errors.New("trade not found")
