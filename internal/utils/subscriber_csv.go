package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
)

// SubscriberExportHeader is the header row of subscriber exports
var SubscriberExportHeader = []string{"Email", "Name", "Subscription Date", "Status", "Source"}

// SubscriberRow is one parsed row of a subscriber import
type SubscriberRow struct {
	Line      int
	Email     string
	Name      string
	Source    models.SubscriberSource
	Interests []string
}

// SubscriberCSVReader reads subscriber rows from an import file
type SubscriberCSVReader struct {
	reader    *csv.Reader
	line      int
	emailIdx  int
	nameIdx   int
	sourceIdx int
	interIdx  int
}

// NewSubscriberCSVReader reads the header row and maps the known columns.
// Only the email column is required.
func NewSubscriberCSVReader(r io.Reader) (*SubscriberCSVReader, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	sr := &SubscriberCSVReader{
		reader:    reader,
		line:      1,
		emailIdx:  findColumnIndex(header, []string{"Email", "Email Address", "E-mail"}),
		nameIdx:   findColumnIndex(header, []string{"Name", "Full Name"}),
		sourceIdx: findColumnIndex(header, []string{"Source", "Channel"}),
		interIdx:  findColumnIndex(header, []string{"Interests", "Topics"}),
	}
	if sr.emailIdx == -1 {
		return nil, fmt.Errorf("email column not found in CSV")
	}
	return sr, nil
}

// Next returns the next row. It returns io.EOF when the input is exhausted.
// A malformed row is reported with its line number and reading may continue.
func (sr *SubscriberCSVReader) Next() (*SubscriberRow, error) {
	record, err := sr.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	sr.line++
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", sr.line, err)
	}

	row := &SubscriberRow{
		Line:   sr.line,
		Email:  models.NormalizeEmail(column(record, sr.emailIdx)),
		Name:   column(record, sr.nameIdx),
		Source: models.SubscriberSource(strings.ToLower(column(record, sr.sourceIdx))),
	}
	if v := column(record, sr.interIdx); v != "" {
		for _, interest := range strings.Split(v, ";") {
			if interest = strings.TrimSpace(interest); interest != "" {
				row.Interests = append(row.Interests, interest)
			}
		}
	}
	return row, nil
}

// WriteSubscribersCSV writes subs with SubscriberExportHeader
func WriteSubscribersCSV(w io.Writer, subs []*models.Subscriber) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SubscriberExportHeader); err != nil {
		return err
	}
	for _, s := range subs {
		record := []string{
			s.Email,
			s.Name,
			s.SubscriptionDate.UTC().Format(time.RFC3339),
			s.StatusLabel(),
			string(s.Source),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// findColumnIndex finds the index of a column by possible names
func findColumnIndex(header []string, possibleNames []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, name := range possibleNames {
			if strings.ToLower(name) == h {
				return i
			}
		}
	}
	return -1
}

func column(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
