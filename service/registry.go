package service

import "fleetdash/models"

// Entry is what the registry owns per device: the canonical value plus
// the view handles created for it. Handles are set by the adapters when
// they observe the registration.
type Entry struct {
	Device models.Device
	Marker MarkerHandle
	Row    RowHandle
}

// RegistryObserver is notified synchronously after every mutation.
type RegistryObserver interface {
	DeviceAdded(e *Entry)
	DeviceUpdated(e *Entry)
	DeviceRemoved(e *Entry)
}

// ReorderObserver is implemented by observers that keep their own
// ordering. DevicesReordered receives every id in the new order.
type ReorderObserver interface {
	DevicesReordered(ids []string)
}

// Registry maps device id to device state. It is only touched from the
// dashboard loop, so it holds no lock.
type Registry struct {
	entries   map[string]*Entry
	order     []string
	observers []RegistryObserver
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
	}
}

// Observe registers o. Observers run in registration order.
func (r *Registry) Observe(o RegistryObserver) {
	r.observers = append(r.observers, o)
}

// RegisterInitial replaces the registry with list. Devices missing from
// list are removed, the rest are registered or overwritten, and the
// order becomes the order of list. When that order differs from the
// registration order, ReorderObservers are told. Applying the same list
// twice leaves the registry unchanged.
func (r *Registry) RegisterInitial(list []models.Device) {
	keep := make(map[string]bool, len(list))
	for _, d := range list {
		keep[d.ID] = true
	}
	for _, id := range append([]string(nil), r.order...) {
		if !keep[id] {
			r.RemoveOne(id)
		}
	}

	order := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, d := range list {
		if !seen[d.ID] {
			seen[d.ID] = true
			order = append(order, d.ID)
		}
		r.RegisterOne(d)
	}
	if sameOrder(r.order, order) {
		return
	}
	r.order = order
	for _, o := range r.observers {
		if ro, ok := o.(ReorderObserver); ok {
			ro.DevicesReordered(append([]string(nil), order...))
		}
	}
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RegisterOne adds d, or overwrites the device with the same id (last
// write wins). It reports whether an existing device was replaced.
func (r *Registry) RegisterOne(d models.Device) (*Entry, bool) {
	if e, ok := r.entries[d.ID]; ok {
		e.Device = d
		r.notify(func(o RegistryObserver) { o.DeviceUpdated(e) })
		return e, true
	}

	e := &Entry{Device: d}
	r.entries[d.ID] = e
	r.order = append(r.order, d.ID)
	r.notify(func(o RegistryObserver) { o.DeviceAdded(e) })
	return e, false
}

// UpdateOne applies a partial update. Battery is only overwritten when
// the update carries it. Unknown ids are a no-op reported as false.
func (r *Registry) UpdateOne(id string, u models.DeviceUpdate) (*Entry, bool) {
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.Device.Coordinates = u.Coordinates
	if u.BatteryLevel != nil {
		level := *u.BatteryLevel
		e.Device.BatteryLevel = &level
	}
	r.notify(func(o RegistryObserver) { o.DeviceUpdated(e) })
	return e, true
}

// RemoveOne drops the device. Unknown ids are a no-op reported as false.
func (r *Registry) RemoveOne(id string) (models.Device, bool) {
	e, ok := r.entries[id]
	if !ok {
		return models.Device{}, false
	}
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.notify(func(o RegistryObserver) { o.DeviceRemoved(e) })
	return e.Device, true
}

// Clear removes every device, newest first.
func (r *Registry) Clear() {
	for len(r.order) > 0 {
		r.RemoveOne(r.order[len(r.order)-1])
	}
}

// Get returns a copy of the device with id.
func (r *Registry) Get(id string) (models.Device, bool) {
	e, ok := r.entries[id]
	if !ok {
		return models.Device{}, false
	}
	return e.Device, true
}

// Entry returns the live entry for id, including its view handles.
func (r *Registry) Entry(id string) (*Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *Registry) Has(id string) bool {
	_, ok := r.entries[id]
	return ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// All returns the devices in insertion order.
func (r *Registry) All() []models.Device {
	devices := make([]models.Device, 0, len(r.order))
	for _, id := range r.order {
		devices = append(devices, r.entries[id].Device)
	}
	return devices
}

func (r *Registry) notify(fn func(RegistryObserver)) {
	for _, o := range r.observers {
		fn(o)
	}
}
