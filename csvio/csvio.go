// Package csvio reads field values and variable conditions from uploaded
// CSV files and writes the matching one-row templates.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/mail"
	"regexp"

	"github.com/GoCodeAlone/phishvars/store"
)

// Kind selects which entity a CSV file describes.
type Kind string

const (
	KindField    Kind = "field"
	KindVariable Kind = "variable"
)

var (
	emailHeader     = regexp.MustCompile(`(?i)email`)
	conditionHeader = regexp.MustCompile(`(?i)condition`)
	valueHeader     = regexp.MustCompile(`(?i)value`)
)

// ErrMalformed is returned when a file is not valid CSV.
var ErrMalformed = errors.New("malformed csv")

// ParseValues reads every file part of mr as an Email,Value CSV. Parts
// without a filename or without both header columns are skipped, as are
// rows whose email does not parse.
func ParseValues(mr *multipart.Reader) ([]store.FieldValue, error) {
	values := []store.FieldValue{}
	err := eachFilePart(mr, func(r io.Reader) error {
		vs, err := ReadValues(r)
		values = append(values, vs...)
		return err
	})
	return values, err
}

// ParseConditions reads every file part of mr as a Condition,Value CSV.
func ParseConditions(mr *multipart.Reader) ([]store.Condition, error) {
	conds := []store.Condition{}
	err := eachFilePart(mr, func(r io.Reader) error {
		cs, err := ReadConditions(r)
		conds = append(conds, cs...)
		return err
	})
	return conds, err
}

// ReadValues parses a single Email,Value CSV stream. Emails are reduced to
// their bare address and lowercased.
func ReadValues(r io.Reader) ([]store.FieldValue, error) {
	values := []store.FieldValue{}
	err := readPairs(r, emailHeader, func(key, value string) {
		addr, err := mail.ParseAddress(key)
		if err != nil {
			return
		}
		values = append(values, store.FieldValue{Email: store.Lower(addr.Address), Value: value})
	})
	return values, err
}

// ReadConditions parses a single Condition,Value CSV stream.
func ReadConditions(r io.Reader) ([]store.Condition, error) {
	conds := []store.Condition{}
	err := readPairs(r, conditionHeader, func(key, value string) {
		if key == "" {
			return
		}
		conds = append(conds, store.Condition{Condition: key, Value: value})
	})
	return conds, err
}

func eachFilePart(mr *multipart.Reader, fn func(io.Reader) error) error {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read multipart: %w", err)
		}
		// Skip form fields such as the submit button.
		if part.FileName() == "" {
			part.Close()
			continue
		}
		err = fn(part)
		part.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", part.FileName(), err)
		}
	}
}

// readPairs locates the key and value columns from the header row and calls
// emit for every data row that has a key cell.
func readPairs(r io.Reader, keyHeader *regexp.Regexp, emit func(key, value string)) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	ki, vi := -1, -1
	for i, h := range header {
		switch {
		case keyHeader.MatchString(h):
			ki = i
		case valueHeader.MatchString(h):
			vi = i
		}
	}
	if ki == -1 || vi == -1 {
		return nil
	}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if len(record) <= ki {
			continue
		}
		value := ""
		if len(record) > vi {
			value = record[vi]
		}
		emit(record[ki], value)
	}
}
