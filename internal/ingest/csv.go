package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode returns the upload as UTF-8. Content that is not valid UTF-8 is
// read as Windows-1252, the encoding of spreadsheet exports on most
// operator workstations.
func decode(content []byte) ([]byte, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if utf8.Valid(content) {
		return content, nil
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		return nil, errors.New(errors.CodeMalformedInput, "couldn't decode csv file", err)
	}

	return decoded, nil
}

// ParseCSV reads a header line followed by data rows. Every row becomes a
// participant keyed by the trimmed header names, tagged valid when it has a
// non-blank value for every column and refused otherwise. Blank lines are
// skipped. A file without data rows yields an empty slice.
func ParseCSV(content []byte, delimiter rune) ([]types.Participant, error) {
	content, err := decode(content)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return []types.Participant{}, nil
	}
	if err != nil {
		return nil, errors.New(errors.CodeMalformedInput, "couldn't read csv header", err)
	}

	// The derived status and receipt replace uploaded columns of the same
	// name.
	columns := make([]string, 0, len(header))
	seen := map[string]bool{types.FieldStatus: true, types.FieldReceipt: true}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
		if !seen[header[i]] {
			seen[header[i]] = true
			columns = append(columns, header[i])
		}
	}

	participants := []types.Participant{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New(errors.CodeMalformedInput,
				fmt.Sprintf("couldn't read csv row %d", len(participants)+1), err)
		}

		participants = append(participants, participant(columns, header, record))
	}

	return participants, nil
}

func participant(columns, header, record []string) types.Participant {
	p := types.Participant{
		Columns: columns,
		Values:  make(map[string]string, len(columns)),
		Status:  types.RowValid,
	}

	// Cells beyond the header have no column to land in, so the row cannot
	// be trusted.
	if len(record) != len(header) {
		p.Status = types.RowRefused
	}

	for i, column := range header {
		var value string
		if i < len(record) {
			value = record[i]
		}
		if !types.IsReservedField(column) {
			p.Values[column] = value
		}

		if strings.TrimSpace(value) == "" {
			p.Status = types.RowRefused
		}
	}

	return p
}
