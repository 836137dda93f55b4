// Package csvparse decodes CSV files against typed column specifications.
package csvparse

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"strconv"
	"strings"
)

type ValueType string

const (
	Text   ValueType = "text"
	Number ValueType = "number"
	Email  ValueType = "email"
)

type Column struct {
	Name   string
	Type   ValueType
	Unique bool
}

// Error reports the violated constraint plus the offending value.
type Error struct {
	Column  string
	Line    int
	Message string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (column %q, row %d)", e.Message, e.Column, e.Line)
	}
	return fmt.Sprintf("%s (column %q)", e.Message, e.Column)
}

// Parse decodes raw CSV bytes into rows keyed by column name. The header row
// must contain exactly the specified columns; typed columns reject
// unparseable values and unique columns reject duplicates.
func Parse(contents []byte, columns []Column) ([]map[string]string, error) {
	reader := csv.NewReader(bytes.NewReader(contents))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header row: %w", err)
	}
	index, err := matchHeader(header, columns)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]map[string]bool, len(columns))
	for _, col := range columns {
		if col.Unique {
			seen[col.Name] = make(map[string]bool)
		}
	}

	var rows []map[string]string
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		row := make(map[string]string, len(columns))
		for _, col := range columns {
			value := strings.TrimSpace(record[index[col.Name]])
			if value == "" {
				return nil, &Error{Column: col.Name, Line: line, Message: "empty value"}
			}
			if err := checkType(col.Type, value); err != nil {
				return nil, &Error{Column: col.Name, Line: line, Message: err.Error()}
			}
			if col.Unique {
				key := strings.ToLower(value)
				if seen[col.Name][key] {
					return nil, &Error{Column: col.Name, Line: line, Message: fmt.Sprintf("duplicate value %q", value)}
				}
				seen[col.Name][key] = true
			}
			row[col.Name] = value
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func matchHeader(header []string, columns []Column) (map[string]int, error) {
	index := make(map[string]int, len(columns))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range columns {
		if _, ok := index[col.Name]; !ok {
			return nil, &Error{Column: col.Name, Message: "missing required column"}
		}
	}
	if len(header) != len(columns) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(columns), len(header))
	}
	return index, nil
}

func checkType(valueType ValueType, value string) error {
	switch valueType {
	case Number:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected a number, got %q", value)
		}
	case Email:
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value {
			return fmt.Errorf("expected an email address, got %q", value)
		}
	}
	return nil
}
