package console

import "strings"

// FakeLink is an in-memory Link for tests.
type FakeLink struct {
	input  []byte
	output strings.Builder

	// Closed tracks if Close was called.
	Closed bool

	// Writes counts WriteString calls, including those after Close.
	Writes int

	// WriteError, if set, will be returned by WriteString.
	WriteError error
}

// NewFakeLink creates an empty FakeLink.
func NewFakeLink() *FakeLink {
	return &FakeLink{}
}

// Feed queues s as pending input.
func (f *FakeLink) Feed(s string) {
	f.input = append(f.input, s...)
}

// Pending returns the number of unread input bytes.
func (f *FakeLink) Pending() int {
	return len(f.input)
}

// TryReadByte pops the next queued byte.
func (f *FakeLink) TryReadByte() (byte, bool) {
	if len(f.input) == 0 {
		return 0, false
	}
	b := f.input[0]
	f.input = f.input[1:]
	return b, true
}

// WriteString records s.
func (f *FakeLink) WriteString(s string) error {
	f.Writes++
	if f.WriteError != nil {
		return f.WriteError
	}
	f.output.WriteString(s)
	return nil
}

// Close marks the link as closed.
func (f *FakeLink) Close() error {
	f.Closed = true
	return nil
}

// Output returns everything written so far.
func (f *FakeLink) Output() string {
	return f.output.String()
}

// TakeOutput returns everything written so far and clears it.
func (f *FakeLink) TakeOutput() string {
	s := f.output.String()
	f.output.Reset()
	return s
}
