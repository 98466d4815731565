package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RowStatus is the validity tag attached to every ingested CSV row.
type RowStatus string

const (
	RowValid   RowStatus = "valide"
	RowRefused RowStatus = "refusé"
)

// Reserved keys of a participant record, derived during ingestion.
const (
	FieldStatus  = "status"
	FieldReceipt = "receipt"
)

// IngestedBatch is one unit of the ingestion ledger.
type IngestedBatch struct {
	BatchID      string        `json:"batchId"`
	Date         LedgerTime    `json:"date"`
	Participants []Participant `json:"participants"`
	SummaryPDF   *string       `json:"summary_pdf"`
	SourceFile   string        `json:"source_file,omitempty"`
	Fingerprint  string        `json:"fingerprint,omitempty"`
}

// Counts returns the number of valid and refused participants.
func (b IngestedBatch) Counts() (valid, refused int) {
	for _, p := range b.Participants {
		if p.Status == RowValid {
			valid++
		} else {
			refused++
		}
	}
	return valid, refused
}

// Participant is a CSV row keyed by its header. Columns keeps the header
// order so that the persisted document mirrors the uploaded file.
type Participant struct {
	Columns []string
	Values  map[string]string
	Status  RowStatus
	Receipt *string
}

// IsReservedField reports whether a column name collides with a key derived
// during ingestion.
func IsReservedField(column string) bool {
	return column == FieldStatus || column == FieldReceipt
}

func (p Participant) Get(column string) string {
	return p.Values[column]
}

func (p Participant) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')
	for _, column := range p.Columns {
		if IsReservedField(column) {
			continue
		}
		if err := writeField(&buf, column, p.Values[column]); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}

	if err := writeField(&buf, FieldStatus, p.Status); err != nil {
		return nil, err
	}
	buf.WriteByte(',')

	if err := writeField(&buf, FieldReceipt, p.Receipt); err != nil {
		return nil, err
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}

	v, err := json.Marshal(value)
	if err != nil {
		return err
	}

	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)

	return nil
}

func (p *Participant) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("participant must be a JSON object, got %v", tok)
	}

	*p = Participant{Values: make(map[string]string)}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}

		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected participant key %v", tok)
		}

		switch key {
		case FieldStatus:
			var status string
			if err := dec.Decode(&status); err != nil {
				return fmt.Errorf("participant status: %w", err)
			}
			p.Status = RowStatus(status)

		case FieldReceipt:
			if err := dec.Decode(&p.Receipt); err != nil {
				return fmt.Errorf("participant receipt: %w", err)
			}

		default:
			var raw any
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("participant field %q: %w", key, err)
			}
			if _, seen := p.Values[key]; !seen {
				p.Columns = append(p.Columns, key)
			}
			p.Values[key] = stringify(raw)
		}
	}

	_, err = dec.Token()
	return err
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}

// LedgerTime is an ISO-8601 timestamp. Besides RFC 3339 it reads the naive
// local timestamps written by earlier versions of the ledger.
type LedgerTime struct {
	time.Time
}

var ledgerTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (t LedgerTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func (t *LedgerTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	s = strings.TrimSpace(s)
	for _, layout := range ledgerTimeLayouts {
		parsed, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}

	return fmt.Errorf("unsupported ledger timestamp %q", s)
}
