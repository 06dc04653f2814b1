package device

import "sync"

// Selected holds the device workflows act on. Values are copied in and out,
// so changing the selection never affects a workflow already running.
type Selected struct {
	mu   sync.Mutex
	info *Info
}

// Get returns a copy of the selected device.
func (s *Selected) Get() (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return Info{}, false
	}
	return *s.info, true
}

// Set selects info, or clears the selection when info is nil.
func (s *Selected) Set(info *Info) {
	var v *Info
	if info != nil {
		cp := *info
		v = &cp
	}
	s.mu.Lock()
	s.info = v
	s.mu.Unlock()
}

func (s *Selected) Clear() {
	s.Set(nil)
}

// Require returns the selected device or ErrNoDeviceSelected.
func (s *Selected) Require() (Info, error) {
	info, ok := s.Get()
	if !ok {
		return Info{}, ErrNoDeviceSelected
	}
	return info, nil
}
