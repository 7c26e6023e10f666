package console

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	serial "go.bug.st/serial"
)

// DefaultDevice is the RFCOMM device bound to the paired console client.
const DefaultDevice = "/dev/rfcomm0"

// DefaultBaud is ignored by RFCOMM but required by the serial API.
const DefaultBaud = 115200

// pumpTimeout bounds each blocking read so the pump notices Close.
const pumpTimeout = 100 * time.Millisecond

// Reopen backoff after the remote end hangs up.
const (
	reopenMin = 500 * time.Millisecond
	reopenMax = 30 * time.Second
)

// ErrLinkDown is returned by WriteString while the device is being reopened.
var ErrLinkDown = errors.New("console link is down")

// port is the part of serial.Port the link uses.
type port interface {
	io.ReadWriteCloser
	Drain() error
}

// SerialLink is a Link over a serial device using go.bug.st/serial.
// A reader goroutine moves incoming bytes into a buffered channel so that
// TryReadByte never blocks the loop. When the client hangs up the reader
// reopens the device with backoff until the link is closed.
type SerialLink struct {
	dev  string
	open func() (port, error)
	in   chan byte
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	minBackoff time.Duration
	maxBackoff time.Duration

	mu   sync.Mutex
	port port // nil while reopening
}

// OpenSerial opens the serial device and starts the reader goroutine.
func OpenSerial(dev string, baud int) (*SerialLink, error) {
	open := func() (port, error) {
		p, err := serial.Open(dev, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, fmt.Errorf("open serial %s: %w", dev, err)
		}
		if err := p.SetReadTimeout(pumpTimeout); err != nil {
			p.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", dev, err)
		}
		return p, nil
	}
	p, err := open()
	if err != nil {
		return nil, err
	}
	return newSerialLink(dev, p, open, reopenMin, reopenMax), nil
}

func newSerialLink(dev string, p port, open func() (port, error), minBackoff, maxBackoff time.Duration) *SerialLink {
	l := &SerialLink{
		dev:        dev,
		open:       open,
		in:         make(chan byte, 256),
		done:       make(chan struct{}),
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		port:       p,
	}
	l.wg.Add(1)
	go l.pump()
	return l
}

func (l *SerialLink) pump() {
	defer l.wg.Done()
	buf := make([]byte, 64)
	for {
		if l.closing() {
			return
		}
		p := l.current()
		if p == nil {
			if !l.reopen() {
				return
			}
			continue
		}

		n, err := p.Read(buf)
		if err != nil {
			if l.closing() {
				return
			}
			log.Printf("console read error on %s: %v", l.dev, err)
			l.drop(p)
			continue
		}
		for _, b := range buf[:n] {
			select {
			case l.in <- b:
			case <-l.done:
				return
			}
		}
	}
}

func (l *SerialLink) closing() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *SerialLink) current() port {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

// drop closes p if it is still the active port.
func (l *SerialLink) drop(p port) {
	l.mu.Lock()
	if l.port != p {
		l.mu.Unlock()
		return
	}
	l.port = nil
	l.mu.Unlock()
	if err := p.Close(); err != nil {
		log.Printf("console close error on %s: %v", l.dev, err)
	}
}

// reopen retries the device until it opens or the link is closed.
func (l *SerialLink) reopen() bool {
	delay := l.minBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-l.done:
			return false
		case <-time.After(delay):
		}

		p, err := l.open()
		if err != nil {
			if attempt == 1 {
				log.Printf("console reopen %s: %v (retrying)", l.dev, err)
			}
			delay *= 2
			if delay > l.maxBackoff {
				delay = l.maxBackoff
			}
			continue
		}

		l.mu.Lock()
		if l.closing() {
			l.mu.Unlock()
			p.Close()
			return false
		}
		l.port = p
		l.mu.Unlock()
		log.Printf("console %s reopened after %d attempts", l.dev, attempt)
		return true
	}
}

// TryReadByte returns a buffered byte, if any.
func (l *SerialLink) TryReadByte() (byte, bool) {
	select {
	case b := <-l.in:
		return b, true
	default:
		return 0, false
	}
}

// WriteString writes s to the device. It fails with ErrLinkDown while no
// client is attached.
func (l *SerialLink) WriteString(s string) error {
	p := l.current()
	if p == nil {
		return ErrLinkDown
	}
	_, err := p.Write([]byte(s))
	return err
}

// Close flushes pending output, stops the reader and closes the device.
func (l *SerialLink) Close() error {
	var err error
	l.once.Do(func() {
		l.mu.Lock()
		close(l.done)
		p := l.port
		l.port = nil
		l.mu.Unlock()

		if p != nil {
			if derr := p.Drain(); derr != nil {
				log.Printf("console drain error: %v", derr)
			}
			err = p.Close()
		}
		l.wg.Wait()
	})
	return err
}
