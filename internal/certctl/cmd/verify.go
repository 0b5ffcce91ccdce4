package cmd

import (
	"fmt"
	"log"

	"github.com/avvvet/certify-services/internal/certctl/client"
	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/table"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <certificate id>",
	Short: "Check a certificate against the registry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		v, err := client.New(serverURL, "").Verify(args[0])
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		fmt.Printf("%s\n", renderVerification(v))
	},
}

func renderVerification(v *models.Verification) string {
	status := color.New(color.FgGreen).Sprint(v.Status)
	if v.Status != "valid" {
		status = color.New(color.FgRed).Sprint(v.Status)
	}

	t := table.NewWriter()
	t.AppendRow(table.Row{"Status", status})
	if c := v.Certificate; c != nil {
		t.AppendRow(table.Row{"Certificate", c.CertID})
		t.AppendRow(table.Row{"Student", c.StudentName})
		t.AppendRow(table.Row{"Formation", c.FormationName})
		t.AppendRow(table.Row{"Type", c.CertType})
		t.AppendRow(table.Row{"Issuer", c.IssuerName})
		t.AppendRow(table.Row{"Issued", c.IssuedAt.Format("2006-01-02")})
	}
	if v.TxHash != nil {
		t.AppendRow(table.Row{"Transaction", *v.TxHash})
	}
	if v.RevokeTxHash != nil {
		t.AppendRow(table.Row{"Revocation", *v.RevokeTxHash})
	}
	if v.ExplorerURL != "" {
		t.AppendRow(table.Row{"Explorer", v.ExplorerURL})
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
