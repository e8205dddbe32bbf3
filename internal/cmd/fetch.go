package cmd

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mvdnes/dmarc-reporter/internal/config"
	"github.com/mvdnes/dmarc-reporter/internal/mail"
	"github.com/mvdnes/dmarc-reporter/internal/mailbox"
)

var configPath string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and summarize reports from an IMAP mailbox",
	Long: `Fetch report messages from the configured IMAP mailbox, extract their
compressed report attachments and print one summary per report.

A message or report that cannot be processed is logged and the run
continues with the next one.

Example:
  dmarc-reporter fetch --config dmarc-reporter.yml`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&configPath, "config", "c", "dmarc-reporter.yml", "Path to the configuration file")
	fetchCmd.Flags().BoolVar(&outputJSON, "json", false, "Output summaries as JSON")
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	maxReportSize = cfg.Limits.ReportBytes

	// Soft ceiling on the whole process, so a hostile report payload
	// pressures the GC instead of taking the machine down.
	if cfg.Limits.MemoryBytes > 0 {
		debug.SetMemoryLimit(cfg.Limits.MemoryBytes)
	}

	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())

	client, err := mailbox.Dial(cfg.IMAP)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			log.WithError(cerr).Warn("closing mailbox connection")
		}
	}()

	stdout := cmd.OutOrStdout()
	return client.ForEachMessage(cfg.IMAP.Mailbox, cfg.IMAP.Subject, func(r io.Reader) error {
		reports, unknown, err := mail.ExtractReports(r)
		if err != nil {
			log.WithError(err).Warn("skipping unparseable message")
			return nil
		}
		for _, ct := range unknown {
			log.WithField("content_type", ct).Info("ignoring part with unknown content type")
		}

		for _, report := range reports {
			source := report.Filename
			if source == "" {
				source = fmt.Sprintf("%s attachment", report.Kind)
			}
			if err := renderArchive(stdout, source, report.Kind, report.Payload); err != nil {
				log.WithError(err).WithField("report", source).Warn("skipping report")
			}
		}
		return nil
	})
}
