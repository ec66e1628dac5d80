package adapters

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/brettbedarf/devfs"
	"github.com/brettbedarf/devfs/config"
	"github.com/brettbedarf/devfs/internal/util"
)

type BuiltInDeviceType = string

const (
	HTTPDeviceType  BuiltInDeviceType = "http"
	LocalDeviceType BuiltInDeviceType = "local"
)

// HTTPDeviceDef is the JSON definition of an http device. Unset fields fall
// back to the config.
type HTTPDeviceDef struct {
	Type      string   `json:"type"`
	UserAgent *string  `json:"userAgent,omitempty"`
	Timeout   *float64 `json:"timeout,omitempty"` // seconds; 0 leaves deadlines to the transport
}

// LocalDeviceDef is the JSON definition of a local device
type LocalDeviceDef struct {
	Type string  `json:"type"`
	Root *string `json:"root,omitempty"`
}

// RegisterBuiltins registers all built-in device types by default
// or only the specific ones if keys are provided
func RegisterBuiltins(r *Registry, cfg *config.Config, types ...BuiltInDeviceType) {
	if len(types) == 0 {
		types = []BuiltInDeviceType{HTTPDeviceType, LocalDeviceType}
	}

	for _, key := range types {
		switch key {
		case HTTPDeviceType:
			r.Register(HTTPDeviceType, httpFactory(cfg))
		case LocalDeviceType:
			r.Register(LocalDeviceType, localFactory(cfg))
		}
	}
}

// DefaultDevices returns the devices used when no definitions are supplied:
// an http device and a local device rooted at cfg.LocalRoot
func DefaultDevices(cfg *config.Config) []devfs.Device {
	return []devfs.Device{
		newConfiguredHTTPDevice(cfg.UserAgent, cfg.Timeout()),
		newConfiguredLocalDevice(cfg.LocalRoot),
	}
}

// newConfiguredLocalDevice resolves relative paths against the process working
// directory when it lies beneath root
func newConfiguredLocalDevice(root string) *LocalDevice {
	wd, err := os.Getwd()
	if err != nil {
		logger := util.GetLogger("LocalDevice")
		logger.Warn().Err(err).Msg("Working directory unavailable; relative paths resolve against the root")
	}
	return NewLocalDevice(root, WithWorkingDir(wd))
}

func newConfiguredHTTPDevice(userAgent string, timeout time.Duration) *HTTPDevice {
	return NewHTTPDevice(
		WithHTTPClient(&http.Client{Timeout: timeout}),
		WithUserAgent(userAgent),
	)
}

func httpFactory(cfg *config.Config) DeviceFactory {
	return func(raw []byte) (devfs.Device, error) {
		var def HTTPDeviceDef
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, err
		}
		timeout := util.ValueOrDefault(def.Timeout, cfg.RequestTimeout)
		return newConfiguredHTTPDevice(
			util.ValueOrDefault(def.UserAgent, cfg.UserAgent),
			time.Duration(timeout*float64(time.Second)),
		), nil
	}
}

func localFactory(cfg *config.Config) DeviceFactory {
	return func(raw []byte) (devfs.Device, error) {
		var def LocalDeviceDef
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, err
		}
		return newConfiguredLocalDevice(util.ValueOrDefault(def.Root, cfg.LocalRoot)), nil
	}
}
