package cmd

import (
	"io"
	"log"
	"os"

	"github.com/avvvet/certify-services/internal/certctl/client"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Work with uploaded batches",
}

var batchResultsCmd = &cobra.Command{
	Use:   "results <batch id>",
	Short: "Download the results csv of a batch",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if token == "" {
			log.Fatalf("Error: %v", client.ErrUnauthorized)
		}

		var w io.Writer = os.Stdout
		if outFile != "" {
			f, err := os.Create(outFile)
			if err != nil {
				log.Fatalf("Error: %v", err)
			}
			defer f.Close()
			w = f
		}

		if err := client.New(serverURL, token).BatchResultsCSV(args[0], w); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	batchResultsCmd.Flags().StringVarP(&outFile, "out", "o", "", "write to file instead of stdout")
	batchCmd.AddCommand(batchResultsCmd)
	rootCmd.AddCommand(batchCmd)
}
