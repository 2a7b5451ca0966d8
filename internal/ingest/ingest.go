// Package ingest turns uploaded recipient files into validated recipient
// records. CSV files need a case-insensitive Email header column; text files
// carry one address per line.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"SteadySend/internal/models"
	"SteadySend/internal/templates"
	"SteadySend/internal/validate"
)

// ErrTooManyRecipients is returned when a file holds more valid rows than the
// configured cap.
var ErrTooManyRecipients = errors.New("recipient limit exceeded")

// Result is what an upload produces.
type Result struct {
	Count      int
	Recipients []models.RecipientRecord
	Columns    []string
	Skipped    int // rows dropped for invalid email syntax
	FileType   string
}

// Parse dispatches on the uploaded filename extension.
func Parse(filename string, r io.Reader, maxRecipients int) (*Result, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return ParseCSV(r, maxRecipients)
	case ".txt":
		return ParseTXT(r, maxRecipients)
	default:
		return nil, fmt.Errorf("unsupported file type %q (must be .csv or .txt)", ext)
	}
}

// ParseCSV reads recipients from a CSV with a mandatory Email header column.
// All other columns become normalized template fields; rows with malformed
// shape are skipped, rows with invalid emails are skipped and counted.
func ParseCSV(r io.Reader, maxRecipients int) (*Result, error) {
	if maxRecipients <= 0 {
		maxRecipients = 1000
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // malformed rows are skipped, not fatal

	headers, err := reader.Read()
	if err != nil {
		return nil, errors.New("csv header row is missing or unreadable")
	}

	emailIdx := -1
	normalized := make([]string, len(headers))
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if emailIdx == -1 && strings.EqualFold(h, "email") {
			emailIdx = i
			normalized[i] = "Email"
			continue
		}
		name := templates.Normalize(h)
		for seen[name] {
			// Collisions fall back to a generated column name.
			name = templates.Normalize("")
		}
		seen[name] = true
		normalized[i] = name
	}
	if emailIdx == -1 {
		return nil, errors.New("file must contain an Email column")
	}

	var recipients []models.RecipientRecord
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}
		if len(record) != len(headers) {
			continue // skip malformed row
		}

		email := strings.TrimSpace(record[emailIdx])
		if email == "" {
			continue
		}
		if !validate.Email(email) {
			skipped++
			continue
		}
		if len(recipients) >= maxRecipients {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRecipients, maxRecipients)
		}

		fields := make(map[string]string, len(headers)-1)
		for i := range record {
			if i == emailIdx {
				continue
			}
			fields[normalized[i]] = strings.TrimSpace(record[i])
		}
		recipients = append(recipients, models.RecipientRecord{Email: email, Fields: fields})
	}

	if len(recipients) == 0 {
		return nil, errors.New("no valid email addresses found in the file")
	}

	columns := []string{"Email"}
	extra := make([]string, 0, len(normalized))
	for i, name := range normalized {
		if i != emailIdx {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	columns = append(columns, extra...)

	return &Result{
		Count:      len(recipients),
		Recipients: recipients,
		Columns:    columns,
		Skipped:    skipped,
		FileType:   "csv",
	}, nil
}

// ParseTXT reads one email address per line. Blank lines are ignored, invalid
// addresses are skipped and counted.
func ParseTXT(r io.Reader, maxRecipients int) (*Result, error) {
	if maxRecipients <= 0 {
		maxRecipients = 1000
	}

	var recipients []models.RecipientRecord
	skipped := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		email := strings.TrimSpace(scanner.Text())
		if email == "" {
			continue
		}
		if !validate.Email(email) {
			skipped++
			continue
		}
		if len(recipients) >= maxRecipients {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRecipients, maxRecipients)
		}
		recipients = append(recipients, models.RecipientRecord{Email: email, Fields: map[string]string{}})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	if len(recipients) == 0 {
		return nil, errors.New("no valid email addresses found in the file")
	}

	return &Result{
		Count:      len(recipients),
		Recipients: recipients,
		Columns:    []string{"Email"},
		Skipped:    skipped,
		FileType:   "text",
	}, nil
}
