package audit

import (
	"testing"

	"github.com/fentz26/stockwatch/internal/models"
)

type memSink struct {
	entries []models.PDREntry
}

func (m *memSink) WritePDR(action, inputsHash, outcome, taskID, details string) (*models.PDREntry, error) {
	e := models.PDREntry{Action: action, InputsHash: inputsHash, Outcome: outcome, TaskID: taskID, Details: details}
	m.entries = append(m.entries, e)
	return &e, nil
}

func TestRecordHashesInputs(t *testing.T) {
	sink := &memSink{}
	w := NewPDRWriter(sink)

	w.Record("analysis.submit", map[string]string{"code": "600519"}, "success", "T1", "")
	w.Record("analysis.submit", map[string]string{"code": "600519"}, "success", "T2", "")
	w.Record("analysis.submit", map[string]string{"code": "000001"}, "success", "T3", "")

	if len(sink.entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(sink.entries))
	}
	if sink.entries[0].InputsHash != sink.entries[1].InputsHash {
		t.Error("Equal inputs should hash equally")
	}
	if sink.entries[0].InputsHash == sink.entries[2].InputsHash {
		t.Error("Different inputs should hash differently")
	}
	if len(sink.entries[0].InputsHash) != 64 {
		t.Errorf("Expected hex sha256, got %q", sink.entries[0].InputsHash)
	}
}

func TestHashInputsError(t *testing.T) {
	if got := hashInputs(make(chan int)); got != "hash_error" {
		t.Errorf("Expected hash_error, got %s", got)
	}
}
