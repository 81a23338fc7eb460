package service

import "context"

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from the transport layer
// ─────────────────────────────────────────────────────────────

// EventEmitter is an interface for pushing change notifications to
// connected clients. The App struct implements this over its event
// stream. Services receive the interface instead of the transport,
// which makes them independently testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}
