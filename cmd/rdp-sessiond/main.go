// Command rdp-sessiond is the session daemon: it loads configuration,
// sets up TLS for the RDP security layer, and drives the session runtime
// for every connecting peer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var version = "0.1.0"

var cfgFile string

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "rdp-sessiond",
	Short: "gnome-remote-desktop RDP session daemon",
	Long:  "rdp-sessiond drives one RDP session runtime per connecting peer: capability negotiation, graphics submission, clipboard, audio, and input translation.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default /etc/gnome-remote-desktop/rdp-sessiond.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rdp-sessiond v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
