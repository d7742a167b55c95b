package audit

import (
	"path/filepath"
	"testing"
)

func TestSQLiteSink_LogAndCount(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "audit.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	ev := NewEvent("query", OutcomeAnswered)
	ev.Department = "Eng"
	ev.Role = "member"
	ev.Verdict = "safe"
	sink.Log(ev)
	sink.Log(NewEvent("query", OutcomeNoMatch))

	n, err := sink.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count=%d, want 2", n)
	}
}

func TestNewEvent_PopulatesIDAndTime(t *testing.T) {
	ev := NewEvent("query", OutcomeError)
	if ev.ID == "" || ev.Time.IsZero() {
		t.Errorf("incomplete event: %+v", ev)
	}
	if ev.ID == NewEvent("query", OutcomeError).ID {
		t.Error("event IDs must be unique")
	}
}
