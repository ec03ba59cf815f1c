// package formatter exports build reports to CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/radar/internal/models"
	"github.com/desertthunder/radar/internal/shared"
	"github.com/desertthunder/radar/internal/tasks"
)

// Report is a build run with the releases it matched, ready for export.
type Report struct {
	RunID        string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Sequence     int               `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	UserID       string            `json:"user_id" yaml:"user_id"`
	Market       string            `json:"market" yaml:"market"`
	PlaylistID   string            `json:"playlist_id,omitempty" yaml:"playlist_id,omitempty"`
	Status       string            `json:"status" yaml:"status"`
	Error        string            `json:"error,omitempty" yaml:"error,omitempty"`
	ArtistCount  int               `json:"artist_count" yaml:"artist_count"`
	TotalSeen    int               `json:"total_seen" yaml:"total_seen"`
	MatchedCount int               `json:"matched_count" yaml:"matched_count"`
	CreatedAt    time.Time         `json:"created_at" yaml:"created_at"`
	Matches      []models.RunMatch `json:"-" yaml:"-"`
}

// FromRun builds a [Report] from a stored run and its matches.
func FromRun(run *models.BuildRun, matches []models.RunMatch) *Report {
	return &Report{
		RunID:        run.ID(),
		Sequence:     run.Sequence(),
		UserID:       run.UserID(),
		Market:       run.Market(),
		PlaylistID:   run.PlaylistID(),
		Status:       string(run.Status()),
		Error:        run.ErrorMessage(),
		ArtistCount:  run.ArtistCount(),
		TotalSeen:    run.TotalSeen(),
		MatchedCount: run.MatchedCount(),
		CreatedAt:    run.CreatedAt(),
		Matches:      matches,
	}
}

// FromResult builds a [Report] from a build that just finished.
func FromResult(result *tasks.BuildResult) *Report {
	status := string(models.RunSucceeded)
	if result.DryRun {
		status = "dry_run"
	}

	report := &Report{
		RunID:        result.RunID,
		Market:       result.Market,
		PlaylistID:   result.PlaylistID,
		Status:       status,
		ArtistCount:  result.ArtistCount,
		TotalSeen:    result.TotalSeen,
		MatchedCount: result.MatchedCount,
		CreatedAt:    time.Now(),
		Matches:      tasks.RunMatches(result.RunID, result),
	}
	if result.User != nil {
		report.UserID = result.User.ID
	}
	return report
}

// Title names the report by run sequence, or by playlist when the run was not recorded.
func (r *Report) Title() string {
	switch {
	case r.Sequence > 0:
		return fmt.Sprintf("Run #%d", r.Sequence)
	case r.PlaylistID != "":
		return "Playlist " + r.PlaylistID
	default:
		return "Build"
	}
}

// baseName is the default file stem for exports of r.
func (r *Report) baseName() string {
	if r.RunID != "" {
		return r.RunID
	}
	return "radar_" + r.CreatedAt.UTC().Format("20060102T150405")
}

// ExportToCSV converts a Report to CSV format with columns: Position, Release ID, Name, Track URI, Cover URL
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Release ID", "Name", "Track URI", "Cover URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range report.Matches {
		record := []string{
			strconv.Itoa(m.Position + 1),
			m.ReleaseID,
			m.Name,
			m.TrackURI,
			m.CoverURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Report to Markdown format.
//
// covers maps release IDs to local image filenames; releases without an entry link the remote cover.
func ExportToMarkdown(report *Report, covers map[string]string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", report.Title())

	fmt.Fprintf(&buf, "**Status**: %s\n", report.Status)
	if report.PlaylistID != "" {
		fmt.Fprintf(&buf, "**Playlist**: %s\n", report.PlaylistID)
	}
	if report.Market != "" {
		fmt.Fprintf(&buf, "**Market**: %s\n", report.Market)
	}
	fmt.Fprintf(&buf, "**Artists**: %d\n", report.ArtistCount)
	fmt.Fprintf(&buf, "**Matched**: %d of %d\n\n", report.MatchedCount, report.TotalSeen)
	if report.Error != "" {
		fmt.Fprintf(&buf, "> %s\n\n", report.Error)
	}

	buf.WriteString("## Releases\n\n")
	for i, m := range report.Matches {
		name := m.Name
		if name == "" {
			name = m.ReleaseID
		}
		fmt.Fprintf(&buf, "%d. %s", i+1, name)
		if m.TrackURI != "" {
			fmt.Fprintf(&buf, " (`%s`)", m.TrackURI)
		}
		buf.WriteString("\n")

		cover := covers[m.ReleaseID]
		if cover == "" {
			cover = m.CoverURL
		}
		if cover != "" {
			fmt.Fprintf(&buf, "   ![%s](%s)\n", name, cover)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Report to plain text format
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s: %s\n", report.Title(), report.Status)
	if report.PlaylistID != "" {
		fmt.Fprintf(&buf, "Playlist: %s\n", report.PlaylistID)
	}
	fmt.Fprintf(&buf, "Matched: %d of %d (%d artists)\n\n", report.MatchedCount, report.TotalSeen, report.ArtistCount)

	for i, m := range report.Matches {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, m.Name)
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of the report summary (without matches)
func ToMetadataJSON(report *Report) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes.
//
// A nil client uses one with a 30 second timeout.
func DownloadImage(client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	MatchesFile  string
	MetadataFile string
}

// WriteCSVExport exports a report to CSV format with accompanying metadata JSON file.
//
// Defaults to the run ID as the base filename & creates {base}_matches.csv and {base}_metadata.json
func WriteCSVExport(report *Report, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = report.baseName()
	}

	csvData, err := ExportToCSV(report)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	matchesFile := baseFilepath + "_matches.csv"
	if err := os.WriteFile(matchesFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(report)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		MatchesFile:  matchesFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Covers    []string
	Failed    []string // release IDs whose cover could not be saved
}

// MarkdownOptions controls WriteMarkdownExport.
type MarkdownOptions struct {
	DownloadCovers bool
	Client         *http.Client
}

// WriteMarkdownExport exports a report to Markdown format in a dedicated directory.
//
// Directory name defaults to the run ID.
// With DownloadCovers set, each cover is saved as {dir}/covers/{release}.jpg and linked locally;
// a failed download falls back to the remote URL.
func WriteMarkdownExport(report *Report, outputDir string, opts MarkdownOptions) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = report.baseName()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir}
	covers := make(map[string]string)

	if opts.DownloadCovers {
		coverDir := filepath.Join(outputDir, "covers")
		if err := os.MkdirAll(coverDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cover directory: %w", err)
		}

		for _, m := range report.Matches {
			if m.CoverURL == "" {
				continue
			}
			data, err := DownloadImage(opts.Client, m.CoverURL)
			if err != nil {
				result.Failed = append(result.Failed, m.ReleaseID)
				continue
			}
			name := m.ReleaseID + ".jpg"
			if err := os.WriteFile(filepath.Join(coverDir, name), data, 0644); err != nil {
				result.Failed = append(result.Failed, m.ReleaseID)
				continue
			}
			covers[m.ReleaseID] = "covers/" + name
			result.Covers = append(result.Covers, filepath.Join(coverDir, name))
			result.Files = append(result.Files, filepath.Join(coverDir, name))
		}
	}

	mdData, err := ExportToMarkdown(report, covers)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a report to plain text format.
//
// Defaults to {run ID}_matches.txt as the filename.
func WriteTextExport(report *Report, path string) (string, error) {
	if path == "" {
		path = report.baseName() + "_matches.txt"
	}

	textData, err := ExportToText(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteTo writes data to w, returning an error that names what was being written.
func WriteTo(w io.Writer, what string, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", what, err)
	}
	return nil
}
