package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/avvvet/certify-services/internal/csvbatch"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/table"
	"github.com/spf13/cobra"
)

var csvCmd = &cobra.Command{
	Use:   "csv",
	Short: "Work with batch csv files locally",
}

var csvCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a batch csv before uploading it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		content, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		b, err := csvbatch.Parse(string(content), time.Now())
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		fmt.Printf("%s\n", renderBatch(b))
		valid, invalid := b.Counts()
		fmt.Printf("%d valid, %d invalid\n", valid, invalid)
		if invalid > 0 {
			os.Exit(1)
		}
	},
}

var csvTemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "Print an example batch csv",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(csvbatch.Template(time.Now()))
	},
}

func renderBatch(b *csvbatch.Batch) string {
	okMark := color.New(color.FgGreen).Sprint("valid")
	badMark := color.New(color.FgRed).Sprint("invalid")

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Line", "Status", "Student", "Email", "Formation", "Type", "Date", "Errors"})
	for _, r := range b.Rows {
		status := okMark
		if !r.Valid {
			status = badMark
		}
		n := r.Normalized
		t.AppendRow(table.Row{r.Line, status, n.StudentName, n.StudentEmail, n.FormationName, n.CertType, n.ObtainedDate, strings.Join(r.Errors, "; ")})
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}

func init() {
	csvCmd.AddCommand(csvCheckCmd)
	csvCmd.AddCommand(csvTemplateCmd)
	rootCmd.AddCommand(csvCmd)
}
