package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dmarc-reporter",
	Short: "DMARC aggregate report summarizer",
	Long: `dmarc-reporter ingests DMARC aggregate (RUA) reports and prints a
per-report summary of authentication outcomes.

Reports can be read from local files (plain XML, gzip, or zip) or fetched
from an IMAP mailbox where receiving mail systems deliver them.

Example:
  dmarc-reporter parse report.xml.gz
  dmarc-reporter parse ./reports --json
  dmarc-reporter fetch --config dmarc-reporter.yml`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
