/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/okinaau/iloader/internal/account"
	"github.com/okinaau/iloader/internal/colors"
	"github.com/okinaau/iloader/internal/commands/loader"
	"github.com/okinaau/iloader/internal/config"
	"github.com/okinaau/iloader/internal/device"
	"github.com/okinaau/iloader/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// AppVersion stores the plugin's version
	AppVersion string
	// AppBuildTime stores the plugin's build time
	AppBuildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "iloader",
	Short: "Sideload SideStore and hand out pairing files",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
		colors.Init(viper.GetBool("no-color"))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/iloader/config.yml)")
	rootCmd.PersistentFlags().BoolP("verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colorize output")
	rootCmd.PersistentFlags().StringP("udid", "u", "", "Device UniqueDeviceID to use")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.BindPFlag("udid", rootCmd.PersistentFlags().Lookup("udid"))
	// Settings
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.Version = AppVersion
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := config.Dir()
		cobra.CheckErr(err)
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("iloader")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.WithField("config", viper.ConfigFileUsed()).Debug("using config file")
	}
}

type app struct {
	conf     *config.Config
	accounts *account.Store
	svc      *loader.Service
}

func newApp() (*app, error) {
	conf, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	accounts, err := account.Open(conf.Vault.Dir, conf.Vault.Password)
	if err != nil {
		return nil, err
	}
	return &app{
		conf:     conf,
		accounts: accounts,
		svc: loader.New(conf, loader.Options{
			Accounts: accounts,
			Progress: os.Stderr,
			TempDir:  filepath.Join(os.TempDir(), "iloader"),
		}),
	}, nil
}

// selectDevice picks the --udid device, the only attached one or asks.
func (a *app) selectDevice(ctx context.Context) (device.Info, error) {
	devices, err := a.svc.ListDevices(ctx)
	if err != nil {
		return device.Info{}, err
	}
	dev, err := utils.PickDevice(devices, viper.GetString("udid"))
	if err != nil {
		return device.Info{}, fmt.Errorf("failed to pick device: %w", err)
	}
	a.svc.SetSelectedDevice(&dev)
	log.WithField("device", dev.Name).Debug("Selected device")
	return dev, nil
}
