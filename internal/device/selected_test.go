package device

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelected(t *testing.T) {
	var s Selected

	_, err := s.Require()
	assert.ErrorIs(t, err, ErrNoDeviceSelected)

	info := &Info{Name: "iPhone", UniqueID: "udid-1", ConnectionKind: USB}
	s.Set(info)
	info.Name = "changed after Set"

	got, err := s.Require()
	require.NoError(t, err)
	assert.Equal(t, "iPhone", got.Name, "Set copies the value")

	got.Name = "changed after Get"
	again, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, "iPhone", again.Name, "Get returns a copy")

	s.Clear()
	_, ok = s.Get()
	assert.False(t, ok)
}

func TestSelectedConcurrent(t *testing.T) {
	var s Selected
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set(&Info{Name: "iPhone", SessionID: i, UniqueID: "udid"})
		}()
		go func() {
			defer wg.Done()
			if info, ok := s.Get(); ok {
				assert.Equal(t, "udid", info.UniqueID)
			}
		}()
	}
	wg.Wait()
}

func TestHandleKind(t *testing.T) {
	assert.Equal(t, USB, Handle{ConnectionType: "USB"}.Kind())
	assert.Equal(t, Network, Handle{ConnectionType: "Network"}.Kind())
	assert.Equal(t, Unknown, Handle{ConnectionType: ""}.Kind())
}
