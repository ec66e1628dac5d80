package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/brettbedarf/devfs"
)

// command runs against a resolver, writing results to out
type command func(r *devfs.Resolver, args []string, in io.Reader, out io.Writer) error

var commands = map[string]command{
	"stat":  runStat,
	"cat":   runCat,
	"ls":    runLs,
	"rm":    runRm,
	"rmdir": runRmdir,
	"put":   runPut,
}

var errUsage = errors.New("wrong number of arguments")

func getFile(r *devfs.Resolver, p string) (devfs.File, error) {
	f, ok := r.GetFile(p)
	if !ok {
		return nil, &devfs.PathError{Op: devfs.OpOpen, Path: p, Err: devfs.ErrNotFound}
	}
	return f, nil
}

// runStat prints the file's device, location, length and the capabilities
// of a freshly opened read stream
func runStat(r *devfs.Resolver, args []string, _ io.Reader, out io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := getFile(r, args[0])
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "name:\t%s\n", f.Name())
	fmt.Fprintf(tw, "device:\t%s\n", f.Device().Name())
	fmt.Fprintf(tw, "location:\t%s\n", f.Location())
	switch n, err := f.Length(); {
	case err == nil:
		fmt.Fprintf(tw, "length:\t%d\n", n)
	case errors.Is(err, devfs.ErrUnresolvedCapability):
		fmt.Fprintf(tw, "length:\tunresolved\n")
	default:
		return err
	}

	s, err := f.Open(devfs.ModeOpen, devfs.AccessRead, devfs.ShareReadWrite)
	if err != nil {
		fmt.Fprintf(tw, "open:\t%v\n", err)
		return tw.Flush()
	}
	defer s.Close()
	fmt.Fprintf(tw, "read:\t%t\n", s.CanRead())
	fmt.Fprintf(tw, "write:\t%t\n", s.CanWrite())
	fmt.Fprintf(tw, "seek:\t%t\n", s.CanSeek())
	return tw.Flush()
}

// runCat copies the file to out: cat <path> [offset [count]]
func runCat(r *devfs.Resolver, args []string, _ io.Reader, out io.Writer) error {
	if len(args) < 1 || len(args) > 3 {
		return errUsage
	}
	var offset, count int64 = 0, -1
	var err error
	if len(args) > 1 {
		if offset, err = strconv.ParseInt(args[1], 10, 64); err != nil || offset < 0 {
			return fmt.Errorf("invalid offset %q", args[1])
		}
	}
	if len(args) > 2 {
		if count, err = strconv.ParseInt(args[2], 10, 64); err != nil || count < 0 {
			return fmt.Errorf("invalid count %q", args[2])
		}
	}

	f, err := getFile(r, args[0])
	if err != nil {
		return err
	}
	s, err := f.Open(devfs.ModeOpen, devfs.AccessRead, devfs.ShareRead)
	if err != nil {
		return err
	}
	defer s.Close()

	reader, ok := s.(devfs.Readable)
	if !ok || !s.CanRead() {
		return &devfs.PathError{Op: devfs.OpRead, Path: args[0], Err: devfs.ErrUnsupported}
	}
	if offset > 0 {
		seeker, ok := s.(devfs.Seekable)
		if !ok {
			return &devfs.PathError{Op: devfs.OpSeek, Path: args[0], Err: devfs.ErrUnsupported}
		}
		if _, err := seeker.Seek(offset, io.SeekStart); err != nil {
			// Streams without a known length can still skip forward
			if !errors.Is(err, devfs.ErrUnresolvedCapability) {
				return err
			}
			if _, err := io.CopyN(io.Discard, reader, offset); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
		}
	}

	var src io.Reader = reader
	if count >= 0 {
		src = io.LimitReader(reader, count)
	}
	_, err = io.Copy(out, src)
	return err
}

// runLs lists a directory, directories first with a trailing slash
func runLs(r *devfs.Resolver, args []string, _ io.Reader, out io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	d, ok, err := r.GetDirectory(args[0])
	if err != nil {
		return err
	}
	if !ok {
		return &devfs.PathError{Op: devfs.OpList, Path: args[0], Err: devfs.ErrNotFound}
	}

	dirs, err := d.Directories()
	if err != nil {
		return err
	}
	files, err := d.Files()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, sub := range dirs {
		fmt.Fprintf(tw, "-\t%s/\t\n", sub.Name())
	}
	for _, f := range files {
		size := "?"
		if n, err := f.Length(); err == nil {
			size = strconv.FormatInt(n, 10)
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", size, f.Name())
	}
	return tw.Flush()
}

func runRm(r *devfs.Resolver, args []string, _ io.Reader, _ io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	return r.RemoveFile(args[0])
}

func runRmdir(r *devfs.Resolver, args []string, _ io.Reader, _ io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	return r.RemoveDirectory(args[0])
}

// runPut replaces the file's contents with everything read from in. Remote
// files receive the data as a single write.
func runPut(r *devfs.Resolver, args []string, in io.Reader, out io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := getFile(r, args[0])
	if err != nil {
		return err
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	s, err := f.Open(devfs.ModeCreate, devfs.AccessWrite, devfs.ShareNone)
	if err != nil {
		return err
	}
	defer s.Close()

	w, ok := s.(devfs.Writable)
	if !ok || !s.CanWrite() {
		return &devfs.PathError{Op: devfs.OpWrite, Path: args[0], Err: devfs.ErrUnsupported}
	}
	n, err := w.Write(data)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d bytes to %s\n", n, args[0])
	return nil
}
