package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"
)

const threeRows = "nom,prenom,msisdn,montant\n" +
	"Diop,Awa,22997000001,15000\n" +
	"Sow,Moussa,,20000\n" +
	"Fall,Fatou,22997000003,25000\n"

type recordingNotifier struct {
	mu    sync.Mutex
	units []types.IngestedBatch
	err   error
}

func (n *recordingNotifier) BatchIngested(_ context.Context, unit types.IngestedBatch) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.units = append(n.units, unit)
	return n.err
}

type fixture struct {
	path     string
	clock    time.Time
	notifier *recordingNotifier
	pipeline *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		path:     filepath.Join(t.TempDir(), "data.json"),
		clock:    time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		notifier: &recordingNotifier{},
	}
	f.pipeline = New(&Config{Location: time.UTC}, NewFileLedger(f.path), f.notifier, nil)
	f.pipeline.now = func() time.Time { return f.clock }

	return f
}

func (f *fixture) ingest(t *testing.T, content string) *Result {
	t.Helper()

	result, err := f.pipeline.Ingest(context.Background(), "payees.csv", strings.NewReader(content))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	return result
}

func TestIngestExampleUpload(t *testing.T) {
	f := newFixture(t)

	result := f.ingest(t, threeRows)

	if result.BatchID != "20240115_001" {
		t.Fatalf("batch id = %q", result.BatchID)
	}
	if result.ParticipantsAdded != 3 || result.TotalBatches != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Valid != 2 || result.Refused != 1 {
		t.Fatalf("unexpected counts %+v", result)
	}

	unit, err := f.pipeline.Get(context.Background(), "20240115_001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	want := []types.RowStatus{types.RowValid, types.RowRefused, types.RowValid}
	for i, p := range unit.Participants {
		if p.Status != want[i] {
			t.Errorf("row %d: status %q, want %q", i+1, p.Status, want[i])
		}
	}
	if unit.SummaryPDF != nil || unit.SourceFile != "payees.csv" || unit.Fingerprint == "" {
		t.Fatalf("unexpected unit metadata %+v", unit)
	}
	if !unit.Date.Equal(f.clock) {
		t.Fatalf("date = %v, want %v", unit.Date.Time, f.clock)
	}

	if len(f.notifier.units) != 1 || f.notifier.units[0].BatchID != "20240115_001" {
		t.Fatalf("notifier saw %+v", f.notifier.units)
	}
}

func TestIngestSequencesWithinDay(t *testing.T) {
	f := newFixture(t)

	first := f.ingest(t, threeRows)
	second := f.ingest(t, threeRows)

	if first.BatchID != "20240115_001" || second.BatchID != "20240115_002" {
		t.Fatalf("ids = %q, %q", first.BatchID, second.BatchID)
	}
	if second.TotalBatches != 2 {
		t.Fatalf("total batches = %d", second.TotalBatches)
	}

	f.clock = f.clock.Add(24 * time.Hour)
	third := f.ingest(t, threeRows)

	if third.BatchID != "20240116_001" || third.TotalBatches != 3 {
		t.Fatalf("unexpected result on the next day %+v", third)
	}
}

func TestIngestUsesConfiguredTimeZone(t *testing.T) {
	f := newFixture(t)

	// 23:30 UTC on the 15th is already the 16th in UTC+1.
	f.clock = time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC)
	f.pipeline.config.Location = time.FixedZone("WAT", 3600)

	if result := f.ingest(t, threeRows); result.BatchID != "20240116_001" {
		t.Fatalf("batch id = %q", result.BatchID)
	}
}

func TestIngestRejectsWithoutTouchingLedger(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, threeRows)

	before, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}

	tests := []struct {
		name     string
		filename string
		content  string
	}{
		{"empty file", "payees.csv", ""},
		{"header only", "payees.csv", "nom,prenom,msisdn,montant\n"},
		{"blank file name", "  ", threeRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.Ingest(context.Background(), tt.filename, strings.NewReader(tt.content))
			if !errors.Is(err, errors.ErrMalformedInput) {
				t.Fatalf("expected malformed input, got %v", err)
			}
		})
	}

	if _, err := f.pipeline.Ingest(context.Background(), "payees.csv", nil); !errors.Is(err, errors.ErrMalformedInput) {
		t.Fatalf("expected malformed input for a missing file, got %v", err)
	}

	after, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("rejected uploads modified the ledger")
	}
	if len(f.notifier.units) != 1 {
		t.Fatalf("rejected uploads were notified: %d events", len(f.notifier.units))
	}
}

func TestIngestSurvivesNotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = stderrors.New("broker unavailable")

	result := f.ingest(t, threeRows)

	units, err := f.pipeline.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(units) != 1 || units[0].BatchID != result.BatchID {
		t.Fatalf("ledger lost the unit: %+v", units)
	}
}

func TestLedgerDocumentFormat(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "nom,msisdn\nAwa,\n")

	data, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}

	var doc []map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("ledger is not a JSON array: %v", err)
	}
	if len(doc) != 1 {
		t.Fatalf("expected one unit, got %d", len(doc))
	}

	for _, key := range []string{"batchId", "date", "participants", "summary_pdf"} {
		if _, ok := doc[0][key]; !ok {
			t.Errorf("unit is missing %q", key)
		}
	}

	if got := string(doc[0]["summary_pdf"]); got != "null" {
		t.Errorf("summary_pdf = %s", got)
	}
	if !bytes.Contains(data, []byte(`"status": "refusé"`)) && !bytes.Contains(data, []byte(`"status":"refusé"`)) {
		t.Errorf("refused tag is not written verbatim:\n%s", data)
	}
}

func TestFileLedgerReadsLegacyDocument(t *testing.T) {
	f := newFixture(t)

	legacy := `[
    {
        "batchId": "20240115_001",
        "date": "2024-01-15T08:12:45.123456",
        "participants": [
            {"nom": "Diop", "msisdn": "22997000001", "status": "valide", "receipt": null}
        ],
        "summary_pdf": null
    }
]`
	if err := os.WriteFile(f.path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if result := f.ingest(t, threeRows); result.BatchID != "20240115_002" || result.TotalBatches != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	unit, err := f.pipeline.Get(context.Background(), "20240115_001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if unit.Participants[0].Get("msisdn") != "22997000001" || unit.Participants[0].Status != types.RowValid {
		t.Fatalf("legacy participant not preserved: %+v", unit.Participants[0])
	}
}

func TestFileLedgerMovesCorruptDocumentAside(t *testing.T) {
	f := newFixture(t)

	if err := os.WriteFile(f.path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if result := f.ingest(t, threeRows); result.BatchID != "20240115_001" || result.TotalBatches != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	backups, err := filepath.Glob(f.path + ".corrupt-*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected one backup, got %v", backups)
	}
}

func TestFileLedgerGetMissing(t *testing.T) {
	f := newFixture(t)

	if _, err := f.pipeline.Get(context.Background(), "20240115_001"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	units, err := f.pipeline.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if units == nil || len(units) != 0 {
		t.Fatalf("expected an empty ledger, got %#v", units)
	}
}

func TestConcurrentIngestionsGetDistinctIDs(t *testing.T) {
	f := newFixture(t)

	const workers = 16

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]bool)
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result, err := f.pipeline.Ingest(context.Background(), "payees.csv", strings.NewReader(threeRows))
			if err != nil {
				t.Errorf("ingest: %v", err)
				return
			}

			mu.Lock()
			ids[result.BatchID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != workers {
		t.Fatalf("expected %d distinct ids, got %d: %v", workers, len(ids), ids)
	}

	units, err := f.pipeline.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(units) != workers {
		t.Fatalf("ledger holds %d units, want %d", len(units), workers)
	}
	for i := 1; i <= workers; i++ {
		if id := FormatBatchID("20240115", i); !ids[id] {
			t.Errorf("missing id %s", id)
		}
	}
}

func TestLedgerHandlesSharingAFileGetDistinctIDs(t *testing.T) {
	f := newFixture(t)

	// A second handle on the same file stands for another process, such as
	// pensionctl running next to the server.
	other := New(&Config{Location: time.UTC}, NewFileLedger(f.path), nil, nil)
	other.now = func() time.Time { return f.clock }

	const perPipeline = 20

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]int)
	)

	for _, p := range []*Pipeline{f.pipeline, other} {
		for range perPipeline {
			wg.Add(1)
			go func() {
				defer wg.Done()

				result, err := p.Ingest(context.Background(), "payees.csv", strings.NewReader(threeRows))
				if err != nil {
					t.Errorf("ingest: %v", err)
					return
				}

				mu.Lock()
				ids[result.BatchID]++
				mu.Unlock()
			}()
		}
	}
	wg.Wait()

	if len(ids) != 2*perPipeline {
		t.Fatalf("expected %d distinct ids, got %d: %v", 2*perPipeline, len(ids), ids)
	}

	units, err := other.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(units) != 2*perPipeline {
		t.Fatalf("ledger holds %d units, want %d", len(units), 2*perPipeline)
	}
}
