package csvparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = []Column{
	{Name: "Jurisdiction", Type: Text, Unique: true},
	{Name: "Admin Email", Type: Email, Unique: true},
}

func TestParse(t *testing.T) {
	rows, err := Parse([]byte("Jurisdiction,Admin Email\nAlameda, alameda@example.gov\nMarin,marin@example.gov\n"), testColumns)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alameda", rows[0]["Jurisdiction"])
	assert.Equal(t, "alameda@example.gov", rows[0]["Admin Email"])
}

func TestParseHeaderOrderIndependent(t *testing.T) {
	rows, err := Parse([]byte("Admin Email,Jurisdiction\nalameda@example.gov,Alameda\n"), testColumns)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alameda", rows[0]["Jurisdiction"])
}

func TestParseMissingColumn(t *testing.T) {
	_, err := Parse([]byte("Jurisdiction\nAlameda\n"), testColumns)
	require.Error(t, err)
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "Admin Email", pErr.Column)
	assert.Contains(t, err.Error(), "missing required column")
}

func TestParseEmptyValue(t *testing.T) {
	_, err := Parse([]byte("Jurisdiction,Admin Email\nAlameda,\n"), testColumns)
	require.Error(t, err)
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "Admin Email", pErr.Column)
	assert.Equal(t, 2, pErr.Line)
}

func TestParseBadEmail(t *testing.T) {
	_, err := Parse([]byte("Jurisdiction,Admin Email\nAlameda,not-an-email\n"), testColumns)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected an email address")
}

func TestParseDuplicateValues(t *testing.T) {
	_, err := Parse([]byte("Jurisdiction,Admin Email\nAlameda,a@example.gov\nalameda,b@example.gov\n"), testColumns)
	require.Error(t, err)
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "Jurisdiction", pErr.Column)
	assert.Contains(t, err.Error(), "duplicate value")
}

func TestParseNumberColumn(t *testing.T) {
	columns := []Column{{Name: "Precinct", Type: Text}, {Name: "Ballots", Type: Number}}

	rows, err := Parse([]byte("Precinct,Ballots\nPrecinct 1,120\n"), columns)
	require.NoError(t, err)
	assert.Equal(t, "120", rows[0]["Ballots"])

	_, err = Parse([]byte("Precinct,Ballots\nPrecinct 1,many\n"), columns)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a number")
}
