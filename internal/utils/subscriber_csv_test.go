package utils

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *SubscriberCSVReader) ([]*SubscriberRow, []error) {
	t.Helper()
	var rows []*SubscriberRow
	var errs []error
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, row)
	}
}

func TestSubscriberCSVReader_HeaderAliases(t *testing.T) {
	in := "\ufeffFull Name, E-mail ,Channel,Topics\n" +
		"Ada, ADA@Example.com ,Event,startups; funding ;\n" +
		"Bob,bob@example.com,,\n"

	r, err := NewSubscriberCSVReader(strings.NewReader(in))
	require.NoError(t, err)
	rows, errs := readAll(t, r)
	require.Empty(t, errs)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "ada@example.com", rows[0].Email)
	assert.Equal(t, "Ada", rows[0].Name)
	assert.Equal(t, models.SubscriberSource("event"), rows[0].Source)
	assert.Equal(t, []string{"startups", "funding"}, rows[0].Interests)

	assert.Equal(t, 3, rows[1].Line)
	assert.Empty(t, rows[1].Source)
	assert.Nil(t, rows[1].Interests)
}

func TestSubscriberCSVReader_ShortRowsAndMalformedLines(t *testing.T) {
	in := "Email,Name\nonly@example.com\n\"broken,row\nnext@example.com,N\n"

	r, err := NewSubscriberCSVReader(strings.NewReader(in))
	require.NoError(t, err)
	rows, errs := readAll(t, r)

	require.NotEmpty(t, rows)
	assert.Equal(t, "only@example.com", rows[0].Email)
	assert.Empty(t, rows[0].Name)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "line 3")
}

func TestSubscriberCSVReader_RequiresEmailColumn(t *testing.T) {
	_, err := NewSubscriberCSVReader(strings.NewReader("Name,Source\nAda,website\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email column")

	_, err = NewSubscriberCSVReader(strings.NewReader(""))
	require.Error(t, err)
}

func TestWriteSubscribersCSV(t *testing.T) {
	joined := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	subs := []*models.Subscriber{
		{Email: "a@example.com", Name: "A, Jr.", SubscriptionDate: joined, IsActive: true, Source: models.SourceWebsite},
		{Email: "b@example.com", SubscriptionDate: joined, IsActive: false, Source: models.SourceOther},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSubscribersCSV(&buf, subs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Email,Name,Subscription Date,Status,Source", lines[0])
	assert.Equal(t, `a@example.com,"A, Jr.",2024-03-01T09:30:00Z,`+subs[0].StatusLabel()+",website", lines[1])
	assert.Equal(t, "b@example.com,,2024-03-01T09:30:00Z,"+subs[1].StatusLabel()+",other", lines[2])
}
