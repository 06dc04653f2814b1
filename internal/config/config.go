// Package config is used to load the configuration file
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	DefaultMachineName = "iloader"

	DefaultSideStoreURL            = "https://github.com/SideStore/SideStore/releases/latest/download/SideStore.ipa"
	DefaultSideStoreNightlyURL     = "https://github.com/SideStore/SideStore/releases/download/nightly/SideStore.ipa"
	DefaultLiveContainerURL        = "https://github.com/LiveContainer/LiveContainer/releases/latest/download/LiveContainer+SideStore.ipa"
	DefaultLiveContainerNightlyURL = "https://github.com/LiveContainer/LiveContainer/releases/download/nightly/LiveContainer+SideStore.ipa"
)

type daemon struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Socket string `mapstructure:"socket"`
	Debug  bool   `mapstructure:"debug"`
}

type sideload struct {
	MachineName string `mapstructure:"machine_name"`
	StoreDir    string `mapstructure:"store_dir"`
}

type releases struct {
	SideStore            string `mapstructure:"sidestore"`
	SideStoreNightly     string `mapstructure:"sidestore_nightly"`
	LiveContainer        string `mapstructure:"live_container"`
	LiveContainerNightly string `mapstructure:"live_container_nightly"`
}

type vault struct {
	Dir      string `mapstructure:"dir"`
	Password string `mapstructure:"password"`
}

type download struct {
	Proxy    string `mapstructure:"proxy"`
	Insecure bool   `mapstructure:"insecure"`
}

// Config is the configuration struct
type Config struct {
	Daemon   daemon   `mapstructure:"daemon"`
	Sideload sideload `mapstructure:"sideload"`
	Releases releases `mapstructure:"releases"`
	Vault    vault    `mapstructure:"vault"`
	Download download `mapstructure:"download"`
}

// Dir returns ~/.config/iloader
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: failed to get user home directory: %v", err)
	}
	return filepath.Join(home, ".config", "iloader"), nil
}

func (c *Config) verify() error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	if c.Daemon.Host == "" && c.Daemon.Port == 0 && c.Daemon.Socket == "" {
		c.Daemon.Socket = filepath.Join(dir, "iloader.sock")
	} else if c.Daemon.Host != "" && c.Daemon.Socket != "" {
		return fmt.Errorf("config: host and socket cannot be set at the same time")
	} else if c.Daemon.Host != "" && c.Daemon.Port == 0 {
		return fmt.Errorf("config: port must be set if host is set")
	} else if c.Daemon.Host == "" && c.Daemon.Port != 0 {
		c.Daemon.Host = "localhost"
	}

	if c.Sideload.MachineName == "" {
		c.Sideload.MachineName = DefaultMachineName
	}
	if c.Sideload.StoreDir == "" {
		c.Sideload.StoreDir = filepath.Join(dir, "store")
	}
	if c.Vault.Dir == "" {
		c.Vault.Dir = filepath.Join(dir, "vault")
	}

	if c.Releases.SideStore == "" {
		c.Releases.SideStore = DefaultSideStoreURL
	}
	if c.Releases.SideStoreNightly == "" {
		c.Releases.SideStoreNightly = DefaultSideStoreNightlyURL
	}
	if c.Releases.LiveContainer == "" {
		c.Releases.LiveContainer = DefaultLiveContainerURL
	}
	if c.Releases.LiveContainerNightly == "" {
		c.Releases.LiveContainerNightly = DefaultLiveContainerNightlyURL
	}

	return nil
}

// LoadConfig loads the configuration file
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load unmarshals and verifies the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c *Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}
