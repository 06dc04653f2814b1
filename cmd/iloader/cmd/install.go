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

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/okinaau/iloader/internal/operation"
	"github.com/okinaau/iloader/internal/workflow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().BoolP("nightly", "n", false, "Install the nightly release")
	installCmd.Flags().BoolP("live-container", "l", false, "Install LiveContainer with SideStore")
	viper.BindPFlag("install.nightly", installCmd.Flags().Lookup("nightly"))
	viper.BindPFlag("install.live-container", installCmd.Flags().Lookup("live-container"))
}

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download and install SideStore, then place its pairing file",
	Example: heredoc.Doc(`
		# Install the latest SideStore release
		❯ iloader install
		# Install the nightly LiveContainer+SideStore build
		❯ iloader install --nightly --live-container`),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()
		if _, err := a.selectDevice(ctx); err != nil {
			return err
		}

		opts := workflow.InstallOptions{
			Nightly:       viper.GetBool("install.nightly"),
			LiveContainer: viper.GetBool("install.live-container"),
		}
		return runOperation(ctx, func(ctx context.Context, events chan<- operation.Event) error {
			return a.svc.RunInstallAndPair(ctx, events, opts)
		})
	},
}
