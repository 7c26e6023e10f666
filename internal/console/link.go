// Package console implements the interactive single-character command
// console spoken over the serial radio link.
package console

// Link is the byte stream the console talks over.
type Link interface {
	// TryReadByte returns the next pending byte without blocking.
	// ok is false when no input is waiting.
	TryReadByte() (b byte, ok bool)

	// WriteString sends text to the remote end.
	WriteString(s string) error

	// Close tears the link down. The console is unusable afterwards.
	Close() error
}
