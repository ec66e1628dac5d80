package devfs

import "io"

// Device is a backend that claims a class of paths and produces file and
// directory handles for them. Devices never fail on paths they do not
// understand; they report the path as absent instead.
type Device interface {
	// Name identifies the device
	Name() string

	// Parent returns the directory the device is mounted under.
	// Root devices have none.
	Parent() (Directory, bool)

	// QueryPath reports whether the device claims path and returns the device
	// responsible for it
	QueryPath(path string) (Device, bool)

	// GetFile returns a handle bound to path without performing any I/O
	GetFile(path string) (File, bool)

	// GetDirectory returns a handle for the directory at path.
	// Devices without a directory concept return an error matching [ErrUnsupported].
	GetDirectory(path string) (Directory, bool, error)

	// Files lists the files at the device root
	Files() ([]File, error)

	// Directories lists the directories at the device root
	Directories() ([]Directory, error)

	RemoveFile(path string) error
	RemoveDirectory(path string) error
}

// File is a reference to a resource exposed by a [Device]. It is not opened for
// data transfer until [File.Open] is called.
type File interface {
	Name() string
	Device() Device
	Parent() (Directory, bool)

	// Length returns the current size of the file. Implementations must not
	// serve a value cached from an earlier call.
	Length() (int64, error)

	Location() Location
	Compressed() bool

	// Open creates a new stream for the file. Every call returns an
	// independent stream with its own cursor.
	Open(mode Mode, access Access, share Share) (Stream, error)
}

// Directory is a container of files and directories on a [Device]
type Directory interface {
	Name() string
	Device() Device
	Parent() (Directory, bool)
	Files() ([]File, error)
	Directories() ([]Directory, error)
}

// Stream is an open data channel to a [File]. The capability flags are fixed
// when the stream is opened and callers should check them before invoking the
// matching operation.
//
// A Stream is not safe for concurrent use.
type Stream interface {
	io.Closer
	CanRead() bool
	CanSeek() bool
	CanWrite() bool
}

// Readable is a [Stream] that supports sequential reads from its cursor
type Readable interface {
	Stream
	io.Reader
}

// Seekable is a [Stream] with a movable cursor over a known length
type Seekable interface {
	Stream
	io.Seeker
	Length() (int64, error)
}

// Writable is a [Stream] that accepts writes at its cursor
type Writable interface {
	Stream
	io.Writer
	Flush() error
}

// Truncater is a [Stream] whose length can be changed by the caller
type Truncater interface {
	Stream
	SetLength(n int64) error
}
