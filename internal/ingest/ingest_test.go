package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	csv := strings.Join([]string{
		"Email,First Name,2024 Sales!",
		"ana@example.com,Ana,1200",
		"bo@example.com,Bo,900",
	}, "\n")

	res, err := ParseCSV(strings.NewReader(csv), 100)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "csv", res.FileType)
	assert.Equal(t, []string{"Email", "First_Name", "_2024_Sales"}, res.Columns)
	assert.Zero(t, res.Skipped)

	require.Len(t, res.Recipients, 2)
	assert.Equal(t, "ana@example.com", res.Recipients[0].Email)
	assert.Equal(t, "Ana", res.Recipients[0].Fields["First_Name"])
	assert.Equal(t, "1200", res.Recipients[0].Fields["_2024_Sales"])
}

func TestParseCSVRequiresEmailColumn(t *testing.T) {
	csv := "Name,Company\nAna,Acme\n"
	_, err := ParseCSV(strings.NewReader(csv), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email column")
}

func TestParseCSVEmailHeaderIsCaseInsensitive(t *testing.T) {
	csv := "EMAIL,Name\nana@example.com,Ana\n"
	res, err := ParseCSV(strings.NewReader(csv), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "ana@example.com", res.Recipients[0].Email)
}

func TestParseCSVSkipsInvalidEmails(t *testing.T) {
	csv := strings.Join([]string{
		"Email,Name",
		"ana@example.com,Ana",
		"not-an-email,Bad",
		"bo@example.com,Bo",
		"also bad,Worse",
	}, "\n")

	res, err := ParseCSV(strings.NewReader(csv), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 2, res.Skipped)
}

func TestParseCSVSkipsMalformedRows(t *testing.T) {
	// A short row is dropped, not fatal.
	csv := "Email,Name\nana@example.com,Ana,extra\nbo@example.com,Bo\n"
	reader := strings.NewReader(csv)

	res, err := ParseCSV(reader, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "bo@example.com", res.Recipients[0].Email)
}

func TestParseCSVEnforcesRecipientLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("Email\n")
	for i := 0; i < 5; i++ {
		b.WriteString("user")
		b.WriteByte(byte('a' + i))
		b.WriteString("@example.com\n")
	}

	_, err := ParseCSV(strings.NewReader(b.String()), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyRecipients)
}

func TestParseCSVNoValidRecipients(t *testing.T) {
	csv := "Email\nnope\nstill-nope\n"
	_, err := ParseCSV(strings.NewReader(csv), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid email")
}

func TestParseTXT(t *testing.T) {
	txt := "ana@example.com\n\nnot-an-email\nbo@example.com\n"
	res, err := ParseTXT(strings.NewReader(txt), 100)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "text", res.FileType)
	assert.Equal(t, []string{"Email"}, res.Columns)
	assert.Equal(t, "ana@example.com", res.Recipients[0].Email)
}

func TestParseDispatchesOnExtension(t *testing.T) {
	res, err := Parse("list.txt", strings.NewReader("ana@example.com\n"), 10)
	require.NoError(t, err)
	assert.Equal(t, "text", res.FileType)

	res, err = Parse("list.CSV", strings.NewReader("Email\nana@example.com\n"), 10)
	require.NoError(t, err)
	assert.Equal(t, "csv", res.FileType)

	_, err = Parse("list.xlsx", strings.NewReader(""), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}
