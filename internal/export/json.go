package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaproc/internal/domain"
)

// ErrNothingToExport is returned for a result with no content at all.
var ErrNothingToExport = errors.New("no result to export")

// Document is the on-disk layout of an exported result.
type Document struct {
	Headline    string                `json:"titular"`
	Summary     string                `json:"resumen"`
	Entities    map[string][]string   `json:"entidades"`
	Topics      []string              `json:"temas"`
	Matches     []domain.KeywordMatch `json:"coincidencias"`
	Transcript  string                `json:"transcripcion"`
	ProcessedAt string                `json:"fecha_procesamiento"`
}

// JSONWriter saves results as indented JSON files.
type JSONWriter struct {
	dir string
	now func() time.Time
}

// NewJSONWriter writes into dir when no explicit path is given. An empty dir
// means the working directory.
func NewJSONWriter(dir string) *JSONWriter {
	return &JSONWriter{dir: strings.TrimSpace(dir), now: time.Now}
}

// DefaultFileName is resultados_<YYYY-MM-DD>.json for the current UTC day,
// matching the date of fecha_procesamiento.
func (w *JSONWriter) DefaultFileName() string {
	return fmt.Sprintf("resultados_%s.json", w.now().UTC().Format("2006-01-02"))
}

// DefaultPath joins the configured directory and DefaultFileName.
func (w *JSONWriter) DefaultPath() string {
	return filepath.Join(w.dir, w.DefaultFileName())
}

// Export writes result to path, or to DefaultPath when path is empty, and
// returns the path written.
func (w *JSONWriter) Export(result domain.Result, path string) (string, error) {
	if isEmpty(result) {
		return "", ErrNothingToExport
	}

	path = strings.TrimSpace(path)
	if path == "" {
		path = w.DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	data, err := json.MarshalIndent(NewDocument(result, w.now()), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// NewDocument stamps result with the processing time in UTC.
func NewDocument(result domain.Result, at time.Time) Document {
	doc := Document{
		Headline:    result.Headline,
		Summary:     result.Summary,
		Entities:    result.Entities,
		Topics:      result.Topics,
		Matches:     result.Matches,
		Transcript:  result.Transcript,
		ProcessedAt: at.UTC().Format(time.RFC3339),
	}
	if doc.Entities == nil {
		doc.Entities = map[string][]string{}
	}
	if doc.Topics == nil {
		doc.Topics = []string{}
	}
	if doc.Matches == nil {
		doc.Matches = []domain.KeywordMatch{}
	}
	return doc
}

func isEmpty(r domain.Result) bool {
	return r.Headline == "" && r.Summary == "" && r.Transcript == "" &&
		len(r.Entities) == 0 && len(r.Topics) == 0 && len(r.Matches) == 0
}
