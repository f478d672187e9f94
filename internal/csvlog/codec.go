// Package csvlog converts the flat delimited text used by the reference list and
// the inspection log into ordered field-mappings and back.
//
// The format is deliberately naive: lines are split on '\n' and fields on the
// delimiter, without any quoting awareness. Values containing the delimiter or a
// double quote do not survive Decode(Encode(x)).
package csvlog

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultDelimiter = ","
	quote            = `"`
)

var (
	ErrNoRecords     = errors.New("no records to encode")
	ErrHeterogeneous = errors.New("records have differing field sets")
)

// Record is a single row keyed by header name. Fields keeps the header order.
type Record struct {
	Fields []string          `json:"fields"`
	Values map[string]string `json:"values"`
}

// NewRecord builds a record from alternating field/value pairs.
func NewRecord(pairs ...string) Record {
	r := Record{Values: make(map[string]string, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

// Get returns the value for field, or "" when the field is absent.
func (r Record) Get(field string) string {
	return r.Values[field]
}

// Set assigns a value, appending the field to the order if it is new.
func (r *Record) Set(field, value string) {
	if r.Values == nil {
		r.Values = make(map[string]string)
	}
	if _, ok := r.Values[field]; !ok {
		r.Fields = append(r.Fields, field)
	}
	r.Values[field] = value
}

func (r Record) sameFields(header []string) bool {
	if len(r.Fields) != len(header) {
		return false
	}
	for _, f := range header {
		if _, ok := r.Values[f]; !ok {
			return false
		}
	}
	return true
}

// Decode parses text into records. The first line is the header; every further
// line is zipped against it, missing trailing values becoming "".
func Decode(text, delim string) []Record {
	if delim == "" {
		delim = DefaultDelimiter
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	header := splitLine(lines[0], delim)

	records := make([]Record, 0, len(lines)-1)
	for _, line := range lines[1:] {
		values := splitLine(line, delim)
		r := Record{Values: make(map[string]string, len(header))}
		for i, name := range header {
			v := ""
			if i < len(values) {
				v = values[i]
			}
			r.Set(name, v)
		}
		records = append(records, r)
	}
	return records
}

// Encode serializes records with a header taken from the first record's field
// order. Every value is wrapped in double quotes.
func Encode(records []Record, delim string) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	if delim == "" {
		delim = DefaultDelimiter
	}

	header := records[0].Fields
	var b strings.Builder
	b.WriteString(strings.Join(header, delim))
	for i, r := range records {
		if !r.sameFields(header) {
			return "", fmt.Errorf("record %d: %w", i, ErrHeterogeneous)
		}
		b.WriteString("\n")
		for j, name := range header {
			if j > 0 {
				b.WriteString(delim)
			}
			b.WriteString(quote + r.Values[name] + quote)
		}
	}
	return b.String(), nil
}

func splitLine(line, delim string) []string {
	parts := strings.Split(strings.TrimSuffix(line, "\r"), delim)
	for i, p := range parts {
		parts[i] = unquote(strings.TrimSpace(p))
	}
	return parts
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, quote) && strings.HasSuffix(s, quote) {
		return s[1 : len(s)-1]
	}
	return s
}
