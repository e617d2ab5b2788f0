// Package blobstore implements the key-addressed object store with
// "command-output file" handoff: external tools that insist on writing to a
// filesystem path get one, and the blob only becomes visible to readers once
// the writer explicitly flushes it.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned (wrapped) by OpenRead when the key does not exist.
// Exists reports a missing key as false with no error.
var ErrNotFound = errors.New("blobstore: not found")

// ErrAlreadyExists is returned by OpenWrite when the key is already present,
// enforcing create-new semantics (spec Testable Property 7).
var ErrAlreadyExists = errors.New("blobstore: key already exists")

// Storage is the pluggable blob storage abstraction. Keys are opaque but
// conventionally hierarchical, e.g. "thumb/<asset>/small.webp".
type Storage interface {
	// OpenRead opens an existing blob for reading. Returns ErrNotFound if
	// the key does not exist.
	OpenRead(ctx context.Context, key string) (io.ReadCloser, error)

	// OpenWrite opens a new blob for writing. Returns ErrAlreadyExists if
	// the key is already present; implementations must make the check and
	// the claim atomic against concurrent writers of the same key.
	OpenWrite(ctx context.Context, key string) (io.WriteCloser, error)

	// Exists reports whether a blob is present at key.
	Exists(ctx context.Context, key string) (bool, error)

	// LocalPath returns an on-disk path usable by external processes, if
	// the backend is local. The second return value is false for
	// non-local backends.
	LocalPath(ctx context.Context, key string) (string, bool, error)

	// NewCommandOut allocates a command-output handle: a local path an
	// external tool may write to directly. A backend that stages the file
	// elsewhere keeps the blob invisible to OpenRead/Exists until
	// FlushToStorage is called; LocalFileStorage hands out the key's final
	// path, so its blob is visible as soon as the tool writes it.
	NewCommandOut(ctx context.Context, key string) (CommandOutFile, error)

	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// CommandOutFile is the command-output handoff handle described in spec
// §4.1 and the GLOSSARY.
type CommandOutFile interface {
	// Path is the local filesystem path the external tool should write to.
	Path() string

	// Size reports the current size of the file at Path. Valid before and
	// after flush.
	Size() (int64, error)

	// FlushToStorage publishes the written file as the blob at the key
	// this handle was allocated for. Must be called at most once.
	FlushToStorage(ctx context.Context) error

	// Discard drops the command-output file without publishing it. Used by
	// the cancellation path (spec §5) so a cancelled task's partial output
	// never becomes visible.
	Discard() error
}
