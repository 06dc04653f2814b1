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

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/okinaau/iloader/internal/operation"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sideloadCmd)
}

// sideloadCmd represents the sideload command
var sideloadCmd = &cobra.Command{
	Use:   "sideload <IPA>",
	Short: "Install an app package on a device",
	Example: heredoc.Doc(`
		# Sideload an IPA with the logged in developer account
		❯ iloader sideload ~/Downloads/StikDebug.ipa`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("failed to find app package: %w", err)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()
		if _, err := a.selectDevice(ctx); err != nil {
			return err
		}

		return runOperation(ctx, func(ctx context.Context, events chan<- operation.Event) error {
			return a.svc.RunSideload(ctx, events, args[0])
		})
	},
}
