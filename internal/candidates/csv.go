package candidates

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"atslite/internal/errors"
)

// ParseNumeric converts a numeric CSV cell. Currency symbols and thousands
// separators are ignored, and a leading integer prefix is accepted ("3.5"
// reads as 3). Empty or unparseable cells read as 0, so a loaded candidate
// never has a missing number.
func ParseNumeric(raw string) *int {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(raw))

	end := 0
	if end < len(cleaned) && (cleaned[end] == '-' || cleaned[end] == '+') {
		end++
	}
	digits := end
	for end < len(cleaned) && cleaned[end] >= '0' && cleaned[end] <= '9' {
		end++
	}
	if end == digits {
		return Int(0)
	}

	n, err := strconv.Atoi(cleaned[:end])
	if err != nil {
		return Int(0)
	}
	return &n
}

// Parse reads a candidate CSV with a header row. Columns not in the registry
// are ignored. It returns the records in file order and the header as read.
func Parse(r io.Reader) ([]Candidate, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, nil, errors.NewValidationError(errors.ErrCodeEmptyDataset, "candidate CSV has no header row", nil)
		}
		return nil, nil, errors.NewValidationError(errors.ErrCodeInvalidFormat, "failed to read CSV header", err)
	}

	headers := make([]string, len(header))
	setters := make([]func(*Candidate, string), len(header))
	hasID := false
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		headers[i] = name
		if f, ok := LookupField(name); ok {
			setters[i] = f.set
			hasID = hasID || f.Kind == KindID
		}
	}
	if !hasID {
		return nil, nil, errors.NewValidationError(errors.ErrCodeInvalidFormat, "candidate CSV is missing the id column", nil).
			WithContext("headers", headers)
	}

	var (
		out  []Candidate
		seen = make(map[int]int)
		line = 1
	)
	for {
		record, err := reader.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, errors.NewValidationError(errors.ErrCodeInvalidFormat, fmt.Sprintf("failed to read CSV row %d", line), err)
		}
		if isBlankRecord(record) {
			continue
		}

		var c Candidate
		for i, cell := range record {
			if i < len(setters) && setters[i] != nil {
				setters[i](&c, cell)
			}
		}
		fillNumbers(&c)

		if prev, dup := seen[c.ID]; dup {
			return nil, nil, errors.NewValidationError(errors.ErrCodeDuplicateID, "duplicate candidate id", nil).
				WithContext("id", c.ID).
				WithContext("first_line", prev).
				WithContext("line", line)
		}
		seen[c.ID] = line
		out = append(out, c)
	}

	return out, headers, nil
}

// LoadFile opens and parses the CSV at path.
func LoadFile(path string) ([]Candidate, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewIOError(errors.ErrCodeFileNotFound, "candidate file not found", err).WithContext("path", path)
		}
		return nil, nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "candidate file not readable", err).WithContext("path", path)
	}
	defer func() {
		_ = file.Close()
	}()

	return Parse(file)
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
