// Package devfs exposes a single file access contract (list, open, read, seek,
// write, remove) over heterogeneous backing stores so that callers never need
// to know which backend a path resolves to.
//
// Backends implement [Device]. A [Resolver] routes a path string to the first
// device that claims it. Concrete devices live in the adapters package.
package devfs

// Location tags where a [File]'s data lives
type Location int

const (
	LocationLocal Location = iota
	LocationHTTP
)

func (l Location) String() string {
	switch l {
	case LocationLocal:
		return "local"
	case LocationHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Mode controls how an existing or missing file is treated on open
type Mode int

const (
	// ModeOpen opens an existing file
	ModeOpen Mode = iota
	// ModeCreateNew creates a file and fails if it already exists
	ModeCreateNew
	// ModeCreate creates a file, truncating any existing one
	ModeCreate
	// ModeOpenOrCreate opens the file, creating it if missing
	ModeOpenOrCreate
	// ModeTruncate opens an existing file and truncates it to zero length
	ModeTruncate
	// ModeAppend opens or creates the file and positions writes at its end
	ModeAppend
)

// Access is the data direction requested on open
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessReadWrite
)

// CanRead reports whether a reads the file
func (a Access) CanRead() bool { return a == AccessRead || a == AccessReadWrite }

// CanWrite reports whether a writes the file
func (a Access) CanWrite() bool { return a == AccessWrite || a == AccessReadWrite }

// Share is the access other openers are allowed while the stream is open
type Share int

const (
	ShareNone Share = iota
	ShareRead
	ShareWrite
	ShareReadWrite
)
