package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/brettbedarf/devfs"
	"github.com/puzpuzpuz/xsync/v4"
)

// DeviceFactory builds a device from its raw JSON definition
type DeviceFactory func(raw []byte) (devfs.Device, error)

// Registry maps device type keys to factories. It is safe for concurrent use.
type Registry struct {
	factories *xsync.Map[string, DeviceFactory]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: xsync.NewMap[string, DeviceFactory]()}
}

// Register ties a factory to a "type" key. The first registration for a key wins.
func (r *Registry) Register(deviceType string, factory DeviceFactory) {
	r.factories.LoadOrStore(deviceType, factory)
}

// Factory returns the factory registered for deviceType
func (r *Registry) Factory(deviceType string) (DeviceFactory, error) {
	f, ok := r.factories.Load(deviceType)
	if !ok {
		return nil, fmt.Errorf("no factory for %q", deviceType)
	}
	return f, nil
}

// NewDevice picks the factory from the definition's "type" field and builds the device
func (r *Registry) NewDevice(raw []byte) (devfs.Device, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	if meta.Type == "" {
		return nil, fmt.Errorf("device definition missing type")
	}
	f, err := r.Factory(meta.Type)
	if err != nil {
		return nil, err
	}
	return f(raw)
}

// NewResolver builds every device in defs, a JSON array of definitions, and
// returns a resolver consulting them in order
func (r *Registry) NewResolver(defs []byte) (*devfs.Resolver, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(defs, &raws); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device definitions: %w", err)
	}
	devices := make([]devfs.Device, 0, len(raws))
	for i, raw := range raws {
		d, err := r.NewDevice(raw)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", i, err)
		}
		devices = append(devices, d)
	}
	return devfs.NewResolver(devices...), nil
}
