package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	c, err := Load(viper.New())
	require.NoError(t, err)

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "iloader.sock"), c.Daemon.Socket)
	assert.Equal(t, DefaultMachineName, c.Sideload.MachineName)
	assert.Equal(t, filepath.Join(dir, "store"), c.Sideload.StoreDir)
	assert.Equal(t, DefaultSideStoreNightlyURL, c.Releases.SideStoreNightly)
	assert.Equal(t, DefaultLiveContainerURL, c.Releases.LiveContainer)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	v := viper.New()
	v.Set("daemon.port", 3993)
	v.Set("sideload.machine_name", "build-mac")
	v.Set("releases.sidestore", "https://example.com/SideStore.ipa")

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "localhost", c.Daemon.Host)
	assert.Empty(t, c.Daemon.Socket)
	assert.Equal(t, "build-mac", c.Sideload.MachineName)
	assert.Equal(t, "https://example.com/SideStore.ipa", c.Releases.SideStore)
}

func TestLoadInvalidDaemon(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	v := viper.New()
	v.Set("daemon.host", "0.0.0.0")
	v.Set("daemon.socket", "/tmp/iloader.sock")
	_, err := Load(v)
	assert.Error(t, err)

	v = viper.New()
	v.Set("daemon.host", "0.0.0.0")
	_, err = Load(v)
	assert.ErrorContains(t, err, "port must be set")
}
