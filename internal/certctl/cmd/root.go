package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   string
	serverURL string
	token     string
	outFile   string
)

var rootCmd = &cobra.Command{
	Use:     "certctl",
	Short:   "command line interface for the certificate registry services",
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("certctl:\nversion %s\n", version))
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("CERTCTL_SERVER", "http://localhost:8080"), "certsvc base url")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", os.Getenv("CERTCTL_TOKEN"), "session token (jwt)")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
