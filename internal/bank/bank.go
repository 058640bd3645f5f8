package bank

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/knowcheck/policyquiz/internal/model"
)

// Canonical column names after header normalization.
const (
	colPolicyNumber    = "policynumber"
	colPolicyName      = "policyname"
	colDivision        = "division"
	colRole            = "role"
	colFunction        = "function"
	colChapter         = "chapter"
	colQuestion        = "question"
	colAnswer          = "answer"
	colAcceptedAnswers = "acceptedanswers"
)

// LoadError reports a missing, unreadable, or malformed bank file.
// It is fatal: no quiz state may be created from a failed load.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load question bank %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load question bank %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Bank is the loaded, read-only question table.
type Bank struct {
	Records []model.QuestionRecord

	// Column availability. A missing optional column disables the
	// corresponding feature (role filtering, supervisor weighting,
	// chapter balancing).
	HasRole     bool
	HasFunction bool
	HasChapter  bool

	Info model.BankInfo
}

// Load reads a question bank from a spreadsheet (.xlsx, .xlsm) or a
// delimited text file (.csv, .tsv, .txt).
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "read file", Err: err}
	}

	var rows [][]string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		rows, err = spreadsheetRows(data)
	case ".csv":
		rows, err = delimitedRows(data, ',')
	case ".tsv", ".txt":
		rows, err = delimitedRows(data, '\t')
	default:
		return nil, &LoadError{Path: path, Reason: fmt.Sprintf("unsupported file type %q", ext)}
	}
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "parse", Err: err}
	}

	b, err := build(path, rows)
	if err != nil {
		return nil, err
	}
	b.Info = model.BankInfo{
		SourcePath:  path,
		ContentHash: sha256sum(data),
		LoadedAt:    time.Now(),
		Records:     len(b.Records),
	}
	return b, nil
}

func spreadsheetRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func delimitedRows(data []byte, comma rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
}

func build(path string, rows [][]string) (*Bank, error) {
	if len(rows) == 0 {
		return nil, &LoadError{Path: path, Reason: "file is empty"}
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		if name := normalizeHeader(h); name != "" {
			cols[name] = i
		}
	}
	for _, required := range []string{colDivision, colQuestion, colAnswer} {
		if _, ok := cols[required]; !ok {
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("missing required column %q", required)}
		}
	}

	b := &Bank{}
	for n, row := range rows[1:] {
		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec := model.QuestionRecord{
			PolicyNumber:    cell(colPolicyNumber),
			PolicyName:      cell(colPolicyName),
			Divisions:       splitList(cell(colDivision)),
			Role:            cell(colRole),
			Function:        cell(colFunction),
			Chapter:         cell(colChapter),
			Question:        cell(colQuestion),
			Answer:          cell(colAnswer),
			AcceptedAnswers: splitList(cell(colAcceptedAnswers)),
		}

		if rec.Question == "" || rec.Answer == "" || len(rec.Divisions) == 0 {
			slog.Warn("skipping malformed bank row",
				"path", path, "row", n+2, "question", rec.Question != "", "answer", rec.Answer != "", "division", len(rec.Divisions) > 0)
			continue
		}

		b.Records = append(b.Records, rec)
		b.HasRole = b.HasRole || rec.Role != ""
		b.HasFunction = b.HasFunction || rec.Function != ""
		b.HasChapter = b.HasChapter || rec.Chapter != ""
	}

	if len(b.Records) == 0 {
		return nil, &LoadError{Path: path, Reason: "no usable question rows"}
	}
	return b, nil
}

// normalizeHeader trims a header cell and removes internal spaces so
// "Policy Number" and "PolicyNumber" name the same column.
func normalizeHeader(h string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(h), " ", ""))
}

// splitList parses a comma-separated cell into trimmed non-empty tokens.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var tokens []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
