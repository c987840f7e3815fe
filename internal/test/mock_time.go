package test

import (
	"sync"
	"time"
)

// MockTime is a manually advanced clock for deterministic interceptor tests.
// Pass Now to the interceptor under test.
type MockTime struct {
	m sync.Mutex
	t time.Time
}

// NewMockTime returns a MockTime starting at t.
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{t: t}
}

// Now returns the current mock time.
func (mt *MockTime) Now() time.Time {
	mt.m.Lock()
	defer mt.m.Unlock()
	return mt.t
}

// Set sets the current mock time.
func (mt *MockTime) Set(t time.Time) {
	mt.m.Lock()
	defer mt.m.Unlock()
	mt.t = t
}

// Advance moves the current mock time forward by d.
func (mt *MockTime) Advance(d time.Duration) {
	mt.m.Lock()
	defer mt.m.Unlock()
	mt.t = mt.t.Add(d)
}
