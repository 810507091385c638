package model

import (
	"fmt"
	"strings"
	"sync"
)

// SummaryEntry is a single step outcome inside a task summary.
type SummaryEntry struct {
	Step    string
	Err     error
	Skipped bool
	Detail  string
}

// Summary accumulates the outcome of the sub-operations a task runs (git and pip
// invocations mostly), so failures are absorbed by the task and still reported.
type Summary struct {
	mu      sync.Mutex
	entries []SummaryEntry
}

// OK records a successful step.
func (s *Summary) OK(step, detail string) {
	s.add(SummaryEntry{Step: step, Detail: detail})
}

// Fail records a failed step.
func (s *Summary) Fail(step string, err error) {
	s.add(SummaryEntry{Step: step, Err: err})
}

// Skip records a step that was not executed.
func (s *Summary) Skip(step, reason string) {
	s.add(SummaryEntry{Step: step, Skipped: true, Detail: reason})
}

func (s *Summary) add(e SummaryEntry) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Entries returns a copy of the recorded entries.
func (s *Summary) Entries() []SummaryEntry {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SummaryEntry(nil), s.entries...)
}

// Failures returns the failed entries.
func (s *Summary) Failures() []SummaryEntry {
	var failed []SummaryEntry
	for _, e := range s.Entries() {
		if e.Err != nil {
			failed = append(failed, e)
		}
	}
	return failed
}

// String renders the summary, one line per step.
func (s *Summary) String() string {
	var b strings.Builder
	for _, e := range s.Entries() {
		switch {
		case e.Err != nil:
			fmt.Fprintf(&b, "[failed]  %s: %v\n", e.Step, e.Err)
		case e.Skipped:
			fmt.Fprintf(&b, "[skipped] %s: %s\n", e.Step, e.Detail)
		case e.Detail != "":
			fmt.Fprintf(&b, "[ok]      %s: %s\n", e.Step, e.Detail)
		default:
			fmt.Fprintf(&b, "[ok]      %s\n", e.Step)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
