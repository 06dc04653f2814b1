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
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/okinaau/iloader/internal/commands/loader"
	"github.com/okinaau/iloader/internal/pairing"
	"github.com/okinaau/iloader/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(pairingCmd)
	pairingCmd.AddCommand(pairingAppsCmd)
	pairingCmd.AddCommand(pairingPlaceCmd)
	pairingCmd.AddCommand(pairingExportCmd)

	pairingAppsCmd.Flags().BoolP("json", "j", false, "Display apps as JSON")
	pairingExportCmd.Flags().StringP("output", "o", "", "Path or folder to write the pairing file to")
	viper.BindPFlag("pairing.apps.json", pairingAppsCmd.Flags().Lookup("json"))
	viper.BindPFlag("pairing.export.output", pairingExportCmd.Flags().Lookup("output"))
}

// pairingCmd represents the pairing command
var pairingCmd = &cobra.Command{
	Use:     "pairing",
	Aliases: []string{"pair"},
	Short:   "Manage the pairing file of a device",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var pairingAppsCmd = &cobra.Command{
	Use:           "apps",
	Short:         "List installed apps that accept a pairing file",
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

		apps, err := a.svc.ListInstalledPairableApps(ctx)
		if err != nil {
			return err
		}

		if viper.GetBool("pairing.apps.json") {
			dat, err := json.Marshal(apps)
			if err != nil {
				return fmt.Errorf("failed to marshal apps to JSON: %s", err)
			}
			fmt.Println(string(dat))
			return nil
		}
		if len(apps) == 0 {
			log.Warn("no supported apps installed")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tBUNDLE ID\tPATH")
		for _, app := range apps {
			fmt.Fprintf(w, "%s\t%s\t%s\n", app.Name, app.BundleID, app.Path)
		}
		return w.Flush()
	},
}

var pairingPlaceCmd = &cobra.Command{
	Use:   "place <BUNDLE_ID> [PATH]",
	Short: "Write the pairing file into an app's Documents folder",
	Example: heredoc.Doc(`
		# Place the pairing file where StikDebug reads it
		❯ iloader pairing place com.stik.stikdebug
		# Place it at a custom path inside Documents
		❯ iloader pairing place com.example.app pairing/pairingFile.plist`),
	Args:          cobra.RangeArgs(1, 2),
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

		bundleID := args[0]
		var relPath string
		if len(args) > 1 {
			relPath = args[1]
		} else {
			apps, err := a.svc.ListInstalledPairableApps(ctx)
			if err != nil {
				return err
			}
			for _, app := range apps {
				if app.BundleID == bundleID {
					relPath = app.Path
				}
			}
			if relPath == "" {
				return fmt.Errorf("%s is not a supported app, pass the path inside its Documents folder", bundleID)
			}
		}

		if err := a.svc.PlacePairingCredential(ctx, bundleID, relPath); err != nil {
			return err
		}
		log.Infof("Placed pairing file in %s", bundleID)
		return nil
	},
}

var pairingExportCmd = &cobra.Command{
	Use:           "export",
	Short:         "Save the pairing file to this computer",
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

		var dst pairing.Destination
		if out := viper.GetString("pairing.export.output"); out != "" {
			dst = pairing.FixedPath(out)
		} else {
			dst = pairing.DestinationFunc(func(defaultName string) (string, error) {
				out, err := utils.PromptPath("Save pairing file to:", defaultName)
				if errors.Is(err, utils.ErrInterrupted) {
					return "", pairing.ErrCancelled
				}
				return out, err
			})
		}

		out, err := a.svc.ExportPairingCredential(ctx, dst)
		if err != nil {
			if loader.IsCancelled(err) {
				log.Warn("Export cancelled")
				return nil
			}
			return err
		}
		log.Infof("Exported pairing file to %s", out)
		return nil
	},
}
