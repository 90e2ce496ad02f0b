// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/fabrictap/internal/config"
	"firestige.xyz/fabrictap/internal/log"
)

var (
	// Global flags
	configFile string
	iface      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fabrictap",
	Short: "fabrictap - RoCEv2 and NVMe/TCP frame generator and sniffer",
	Long: `fabrictap builds and transmits RoCEv2 (UDP/4791) and NVMe/TCP (TCP/4420)
test frames on a raw link-layer socket, and captures, classifies and prints
them on the receiving side.

It does not implement RDMA verbs or NVMe command sets: headers are the
simplified fixed-size forms used for lab traffic generation.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and FABRICTAP_* env when empty)")
	rootCmd.PersistentFlags().StringVarP(&iface, "interface", "i", "",
		"network interface, overrides fabrictap.interface")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sniffCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the config file, applies the interface flag and
// initialises logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if iface != "" {
		cfg.Interface = iface
	}
	if cfg.Interface == "" {
		return nil, fmt.Errorf("no interface configured: use --interface or fabrictap.interface")
	}
	if err := log.Init(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
