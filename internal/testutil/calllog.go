// Package testutil provides in-memory fakes of the core ports for tests.
package testutil

import (
	"sync"
)

// CallLog records the order in which fakes were invoked.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

func NewCallLog() *CallLog {
	return &CallLog{}
}

func (l *CallLog) Record(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *CallLog) Count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == name {
			n++
		}
	}
	return n
}

// Filter returns the recorded calls that are in names, in order.
func (l *CallLog) Filter(names ...string) []string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []string
	for _, c := range l.Calls() {
		if want[c] {
			out = append(out, c)
		}
	}
	return out
}
