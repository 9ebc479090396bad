package store

import "errors"

// ErrInvalidTransition is returned when a status change is not allowed from
// the job's current state, e.g. cancelling a completed or failed job.
var ErrInvalidTransition = errors.New("invalid job status transition")
