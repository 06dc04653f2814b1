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
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/apex/log"
	"github.com/okinaau/iloader/internal/account"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountLoginCmd)
	accountCmd.AddCommand(accountLogoutCmd)
	accountCmd.AddCommand(accountStatusCmd)

	accountLoginCmd.Flags().StringP("apple-id", "a", "", "Apple ID")
	accountLoginCmd.Flags().StringP("password", "p", "", "Apple ID password")
	viper.BindPFlag("account.login.apple-id", accountLoginCmd.Flags().Lookup("apple-id"))
	viper.BindPFlag("account.login.password", accountLoginCmd.Flags().Lookup("password"))
}

// accountCmd represents the account command
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the developer account used to sideload",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var accountLoginCmd = &cobra.Command{
	Use:           "login",
	Short:         "Save a developer account to the vault",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds := account.Credentials{
			AppleID:  viper.GetString("account.login.apple-id"),
			Password: viper.GetString("account.login.password"),
		}
		var qs []*survey.Question
		if creds.AppleID == "" {
			qs = append(qs, &survey.Question{
				Name:     "AppleID",
				Prompt:   &survey.Input{Message: "Apple ID:"},
				Validate: survey.Required,
			})
		}
		if creds.Password == "" {
			qs = append(qs, &survey.Question{
				Name:     "Password",
				Prompt:   &survey.Password{Message: "Password:"},
				Validate: survey.Required,
			})
		}
		if len(qs) > 0 {
			if err := survey.Ask(qs, &creds); err != nil {
				if errors.Is(err, terminal.InterruptErr) {
					log.Warn("Exiting...")
					return nil
				}
				return err
			}
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.accounts.Login(creds); err != nil {
			return err
		}
		log.WithField("account", creds.Redacted()).Info("Logged in")
		return nil
	},
}

var accountLogoutCmd = &cobra.Command{
	Use:           "logout",
	Short:         "Remove the developer account from the vault",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.accounts.Logout(); err != nil {
			return err
		}
		log.Info("Logged out")
		return nil
	},
}

var accountStatusCmd = &cobra.Command{
	Use:           "status",
	Short:         "Show the logged in developer account",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		creds, err := a.accounts.Session()
		if err != nil {
			return err
		}
		fmt.Println(creds.Redacted())
		return nil
	},
}
