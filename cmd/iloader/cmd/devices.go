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
	"encoding/json"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.Flags().BoolP("json", "j", false, "Display devices as JSON")
	viper.BindPFlag("devices.json", devicesCmd.Flags().Lookup("json"))
}

// devicesCmd represents the devices command
var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"ls"},
	Short:   "List attached devices",
	Example: heredoc.Doc(`
		# List USB and network attached devices
		❯ iloader devices
		# As JSON
		❯ iloader devices --json`),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		devices, err := a.svc.ListDevices(context.Background())
		if err != nil {
			return err
		}

		if viper.GetBool("devices.json") {
			dat, err := json.Marshal(devices)
			if err != nil {
				return fmt.Errorf("failed to marshal devices to JSON: %s", err)
			}
			fmt.Println(string(dat))
			return nil
		}

		if len(devices) == 0 {
			log.Warn("no devices found")
			return nil
		}
		for _, d := range devices {
			fmt.Println(d)
		}
		return nil
	},
}
