// Package export renders simulation series and summaries for the command line.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/klauspost/compress/zstd"

	"pandemus/internal/epidemic"
)

// Format selects the rendering of WriteSeries and WriteSummaries.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// ParseFormat accepts table, json and csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or csv)", s)
	}
}

var seriesHeader = []string{"day", "susceptible", "infected", "recovered", "dead", "living", "measure"}

// WriteSeries writes one row per day. Days are numbered from 1.
func WriteSeries(w io.Writer, format Format, series epidemic.Series) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, series)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(seriesHeader); err != nil {
			return err
		}
		for d := 0; d < series.Days; d++ {
			if err := cw.Write(seriesRow(series, d)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, strings.Join(seriesHeader, "\t")+"\t")
		for d := 0; d < series.Days; d++ {
			fmt.Fprintln(tw, strings.Join(seriesRow(series, d), "\t")+"\t")
		}
		return tw.Flush()
	}
}

func seriesRow(s epidemic.Series, d int) []string {
	return []string{
		strconv.Itoa(d + 1),
		strconv.Itoa(s.Susceptible[d]),
		strconv.Itoa(s.Infected[d]),
		strconv.Itoa(s.Recovered[d]),
		strconv.Itoa(s.Dead[d]),
		strconv.Itoa(s.Living[d]),
		s.Measures[d],
	}
}

var summaryHeader = []string{"profile", "measure", "peak_day", "peak_infected", "final_dead", "final_recovered", "capped_days"}

// WriteSummaries writes one row per scenario.
func WriteSummaries(w io.Writer, format Format, summaries []epidemic.Summary) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, summaries)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(summaryHeader); err != nil {
			return err
		}
		for _, s := range summaries {
			if err := cw.Write(summaryRow(s)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(summaryHeader, "\t"))
		for _, s := range summaries {
			fmt.Fprintln(tw, strings.Join(summaryRow(s), "\t"))
		}
		return tw.Flush()
	}
}

func summaryRow(s epidemic.Summary) []string {
	return []string{
		s.Profile,
		s.Measure,
		strconv.Itoa(s.PeakDay),
		strconv.Itoa(s.PeakInfected),
		strconv.Itoa(s.Final.Dead),
		strconv.Itoa(s.Final.Recovered),
		strconv.Itoa(s.CappedDays),
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Create opens path for writing. A ".zst" suffix compresses the output with
// zstd; closing the returned writer flushes the frame and the file.
func Create(path string) (io.WriteCloser, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return file, nil
	}

	encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &compressedFile{Encoder: encoder, file: file}, nil
}

type compressedFile struct {
	*zstd.Encoder
	file *os.File
}

func (c *compressedFile) Close() error {
	if err := c.Encoder.Close(); err != nil {
		c.file.Close()
		return fmt.Errorf("failed to close zstd encoder: %w", err)
	}
	return c.file.Close()
}
