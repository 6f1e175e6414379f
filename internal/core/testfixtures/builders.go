package testfixtures

import (
	"time"

	"devassist.dev/cli/internal/core/session"
)

// FixSpecBuilder provides a builder pattern for creating fix specs
type FixSpecBuilder struct {
	spec map[string]any
}

// NewFixSpecBuilder creates a spec of the given fix type with a description
func NewFixSpecBuilder(fixType session.FixType) *FixSpecBuilder {
	return &FixSpecBuilder{spec: map[string]any{
		"type":        string(fixType),
		"description": "test fix",
	}}
}

// With sets an arbitrary spec field
func (b *FixSpecBuilder) With(key string, value any) *FixSpecBuilder {
	b.spec[key] = value
	return b
}

// WithPath sets the file path the fix targets
func (b *FixSpecBuilder) WithPath(path string) *FixSpecBuilder {
	return b.With("path", path)
}

// Build returns a copy of the spec
func (b *FixSpecBuilder) Build() map[string]any {
	out := make(map[string]any, len(b.spec))
	for k, v := range b.spec {
		out[k] = v
	}
	return out
}

// RollbackDataBuilder provides a builder pattern for creating rollback data
type RollbackDataBuilder struct {
	data session.RollbackData
}

// NewRollbackDataBuilder creates empty rollback data
func NewRollbackDataBuilder() *RollbackDataBuilder {
	return &RollbackDataBuilder{}
}

// WithOriginal captures a file's content before the fix
func (b *RollbackDataBuilder) WithOriginal(path, content string) *RollbackDataBuilder {
	b.data.Files = append(b.data.Files, session.FileSnapshot{Path: path, OriginalContent: &content})
	return b
}

// WithCreated marks a file as created by the fix
func (b *RollbackDataBuilder) WithCreated(path string) *RollbackDataBuilder {
	b.data.Files = append(b.data.Files, session.FileSnapshot{Path: path, WasCreated: true})
	return b
}

// WithCommand sets the caller-supplied rollback command
func (b *RollbackDataBuilder) WithCommand(command string) *RollbackDataBuilder {
	b.data.Command = command
	return b
}

// WithDetail sets a free-form detail
func (b *RollbackDataBuilder) WithDetail(key string, value any) *RollbackDataBuilder {
	if b.data.Details == nil {
		b.data.Details = make(map[string]any)
	}
	b.data.Details[key] = value
	return b
}

// Build returns the rollback data
func (b *RollbackDataBuilder) Build() session.RollbackData {
	return b.data
}

// Clock is a settable time source for deterministic tests
type Clock struct {
	now time.Time
}

// NewClock creates a clock frozen at start
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
