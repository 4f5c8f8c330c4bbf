package history

import "errors"

// ErrUnauthenticated indicates the caller supplied no identity.
var ErrUnauthenticated = errors.New("missing identity")

// ErrNotFound indicates no record with the given id is owned by the caller.
var ErrNotFound = errors.New("history record not found")

// ErrCorrupt indicates persisted history content could not be parsed.
// It is fatal to the triggering read; the store is never silently reset.
var ErrCorrupt = errors.New("history storage is corrupt")

// ErrRead indicates history content could not be read at all (I/O or
// permission failure), as opposed to content that read fine but does not
// parse.
var ErrRead = errors.New("history storage read failed")

// ErrWrite indicates the history collection could not be written durably.
var ErrWrite = errors.New("history storage write failed")
