package devfs

import (
	"github.com/brettbedarf/devfs/internal/util"
)

// Resolver routes a logical path to whichever [Device] claims it. Devices are
// asked in the order they were given and the first claimant wins.
//
// A Resolver holds no mutable state and is safe to share between goroutines.
type Resolver struct {
	devices []Device
}

// NewResolver creates a Resolver over devices
func NewResolver(devices ...Device) *Resolver {
	ds := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d != nil {
			ds = append(ds, d)
		}
	}
	return &Resolver{devices: ds}
}

// Devices returns the devices in resolution order
func (r *Resolver) Devices() []Device {
	return append([]Device(nil), r.devices...)
}

// Resolve returns the device claiming path
func (r *Resolver) Resolve(path string) (Device, bool) {
	logger := util.GetLogger("Resolver.Resolve")
	for _, d := range r.devices {
		if dev, ok := d.QueryPath(path); ok {
			logger.Trace().Str("path", path).Str("device", dev.Name()).Msg("Path resolved")
			return dev, true
		}
	}
	logger.Debug().Str("path", path).Msg("No device claims path")
	return nil, false
}

// GetFile returns a file handle for path from the claiming device
func (r *Resolver) GetFile(path string) (File, bool) {
	dev, ok := r.Resolve(path)
	if !ok {
		return nil, false
	}
	return dev.GetFile(path)
}

// GetDirectory returns a directory handle for path from the claiming device
func (r *Resolver) GetDirectory(path string) (Directory, bool, error) {
	dev, ok := r.Resolve(path)
	if !ok {
		return nil, false, nil
	}
	return dev.GetDirectory(path)
}

// RemoveFile removes the file at path through the claiming device
func (r *Resolver) RemoveFile(path string) error {
	dev, ok := r.Resolve(path)
	if !ok {
		return &PathError{Op: OpRemove, Path: path, Err: ErrNotFound}
	}
	return dev.RemoveFile(path)
}

// RemoveDirectory removes the directory at path through the claiming device
func (r *Resolver) RemoveDirectory(path string) error {
	dev, ok := r.Resolve(path)
	if !ok {
		return &PathError{Op: OpRemove, Path: path, Err: ErrNotFound}
	}
	return dev.RemoveDirectory(path)
}
