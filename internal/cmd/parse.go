package cmd

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvdnes/dmarc-reporter/internal/archive"
	"github.com/mvdnes/dmarc-reporter/internal/config"
	"github.com/mvdnes/dmarc-reporter/internal/output"
	"github.com/mvdnes/dmarc-reporter/internal/parser"
)

var (
	outputJSON    bool
	maxReportSize int64
)

var parseCmd = &cobra.Command{
	Use:   "parse [files or directories...]",
	Short: "Parse DMARC aggregate report files",
	Long: `Parse one or more report files or directories containing reports.

Supported inputs are plain XML reports, gzip-compressed reports and zip
archives with one report per entry. A report that fails to parse is
reported and the run continues with the next one.

Examples:
  dmarc-reporter parse report.xml
  dmarc-reporter parse google.com!example.com!123.zip
  dmarc-reporter parse ./reports --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().BoolVar(&outputJSON, "json", false, "Output summaries as JSON")
	parseCmd.Flags().Int64Var(&maxReportSize, "max-report-size", config.DefaultReportBytes,
		"Maximum decompressed size of a single report in bytes (0 disables the cap)")
}

func runParse(cmd *cobra.Command, args []string) error {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("accessing %s: %w", arg, err)
		}

		if info.IsDir() {
			dirFiles, err := walkDirectory(arg)
			if err != nil {
				return fmt.Errorf("walking directory %s: %w", arg, err)
			}
			files = append(files, dirFiles...)
		} else {
			files = append(files, arg)
		}
	}

	if len(files) == 0 {
		return fmt.Errorf("no report files found")
	}

	for _, file := range files {
		if err := parseFile(cmd.OutOrStdout(), file); err != nil {
			fmt.Fprint(cmd.ErrOrStderr(), output.ErrorOutput(filepath.Base(file), err))
		}
	}
	return nil
}

func parseFile(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	kind := archive.DetectKind(path)
	if kind == archive.KindUnknown {
		kind = archive.Sniff(data)
	}

	switch kind {
	case archive.KindXML:
		return parseStream(w, filepath.Base(path), bytes.NewReader(data))
	case archive.KindGzip, archive.KindZip:
		return renderArchive(w, filepath.Base(path), kind, data)
	default:
		return fmt.Errorf("unrecognized report format")
	}
}

// renderArchive unwraps a compressed payload and parses every contained
// report. A failed stream does not abort its siblings.
func renderArchive(w io.Writer, source string, kind archive.Kind, payload []byte) error {
	streams, err := archive.Unwrap(kind, payload, maxReportSize)
	if err != nil {
		return err
	}

	for {
		stream, err := streams.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := parseStream(w, source, stream); err != nil {
			fmt.Fprint(os.Stderr, output.ErrorOutput(source, err))
		}
	}
}

func parseStream(w io.Writer, source string, r io.Reader) error {
	stats, err := parser.ParseReport(r)
	if err != nil {
		return err
	}

	if outputJSON {
		jsonStr, err := output.ToJSON(stats)
		if err != nil {
			return fmt.Errorf("generating JSON for %s: %w", source, err)
		}
		fmt.Fprintln(w, jsonStr)
		return nil
	}
	fmt.Fprintln(w, output.TableOutput(stats))
	return nil
}

// walkDirectory returns every file under root that looks like a report.
func walkDirectory(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if archive.DetectKind(path) != archive.KindUnknown {
			files = append(files, path)
			return nil
		}
		// Reports often arrive with no extension at all.
		if strings.ToLower(filepath.Ext(path)) == "" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}
