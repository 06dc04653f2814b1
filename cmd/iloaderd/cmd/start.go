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
	"errors"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/caarlos0/ctrlc"
	"github.com/okinaau/iloader/internal/account"
	"github.com/okinaau/iloader/internal/commands/loader"
	"github.com/okinaau/iloader/internal/config"
	"github.com/okinaau/iloader/internal/daemon"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().String("host", "", "Host to listen on")
	startCmd.Flags().Int("port", 0, "Port to listen on")
	startCmd.Flags().String("socket", "", "Unix socket to listen on")
	startCmd.Flags().Bool("debug", false, "Run gin in debug mode")
	viper.BindPFlag("daemon.host", startCmd.Flags().Lookup("host"))
	viper.BindPFlag("daemon.port", startCmd.Flags().Lookup("port"))
	viper.BindPFlag("daemon.socket", startCmd.Flags().Lookup("socket"))
	viper.BindPFlag("daemon.debug", startCmd.Flags().Lookup("debug"))
}

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:           "start",
	Short:         "Start the daemon",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}

		conf, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if conf.Vault.Password == "" {
			return errors.New("vault.password must be set for the daemon (ILOADER_VAULT_PASSWORD)")
		}
		accounts, err := account.Open(conf.Vault.Dir, conf.Vault.Password)
		if err != nil {
			return err
		}

		d := daemon.NewDaemon(conf, loader.New(conf, loader.Options{
			Accounts: accounts,
			TempDir:  filepath.Join(os.TempDir(), "iloaderd"),
		}))
		if err := ctrlc.Default.Run(context.Background(), d.Start); err != nil {
			if errors.As(err, &ctrlc.ErrorCtrlC{}) {
				log.Warn("Exiting...")
				return d.Stop()
			}
			return err
		}
		return nil
	},
}
