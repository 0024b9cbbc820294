package sessionlog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fortify/core/apperr"
	"fortify/model"

	"gopkg.in/yaml.v3"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts csv, json or yaml (case-insensitive, yml as an alias). Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", apperr.Validation("unsupported export format", apperr.FieldError{Field: "format", Message: "must be one of csv, json, yaml"})
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/csv"
	}
}

func (f Format) Extension() string {
	return string(f)
}

// ExportFile is a rendered export ready to be sent or stored.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"Date", "Rudiment", "Duration", "Tempo", "Quality"}

type exportRecord struct {
	ID         int64     `json:"id" yaml:"id"`
	Date       time.Time `json:"date" yaml:"date"`
	RudimentID int64     `json:"rudimentId" yaml:"rudimentId"`
	Rudiment   string    `json:"rudiment" yaml:"rudiment"`
	Duration   int       `json:"duration" yaml:"duration"`
	Tempo      int       `json:"tempo" yaml:"tempo"`
	Quality    int       `json:"quality" yaml:"quality"`
	Rating     string    `json:"rating" yaml:"rating"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
}

func toRecords(sessions []*model.PracticeSession) []exportRecord {
	records := make([]exportRecord, 0, len(sessions))
	for _, s := range sessions {
		records = append(records, exportRecord{
			ID:         s.ID,
			Date:       s.Date.UTC(),
			RudimentID: s.RudimentID,
			Rudiment:   s.RudimentName(),
			Duration:   s.Duration,
			Tempo:      s.Tempo,
			Quality:    int(s.Quality),
			Rating:     s.Quality.String(),
			CreatedAt:  s.CreatedAt.UTC(),
		})
	}
	return records
}

func encodeCSV(sessions []*model.PracticeSession) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, s := range sessions {
		record := []string{
			s.Date.UTC().Format(time.RFC3339),
			s.RudimentName(),
			strconv.Itoa(s.Duration),
			strconv.Itoa(s.Tempo),
			strconv.Itoa(int(s.Quality)),
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

// Render encodes sessions in the requested format.
func Render(format Format, sessions []*model.PracticeSession, at time.Time) (*ExportFile, error) {
	var (
		body []byte
		err  error
	)
	switch format {
	case FormatCSV:
		body, err = encodeCSV(sessions)
	case FormatJSON:
		body, err = json.MarshalIndent(toRecords(sessions), "", "  ")
	case FormatYAML:
		body, err = yaml.Marshal(toRecords(sessions))
	default:
		return nil, apperr.Validation("unsupported export format", apperr.FieldError{Field: "format", Message: "must be one of csv, json, yaml"})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s export: %w", format, err)
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("practice-sessions-%s.%s", at.UTC().Format("20060102"), format.Extension()),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}
