package telemetry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/conveyor-sensor/internal/logic"
)

// ErrBusy is returned when a report is dropped because the previous one is
// still in flight.
var ErrBusy = errors.New("previous report still in flight")

// ReportPublisher sends reports to a collector without blocking the caller.
// A publisher that retries or queues can be swapped in here.
type ReportPublisher interface {
	// Publish dispatches r. A non-nil error means r was not dispatched;
	// delivery failures are not returned.
	Publish(r logic.Report) error
}

// DefaultTimeout bounds a single report request.
const DefaultTimeout = 5 * time.Second

// maxLoggedBody caps how much of a response body is logged.
const maxLoggedBody = 512

// HTTPReporter POSTs each report as JSON to a collector URL, one request at
// a time.
type HTTPReporter struct {
	url    string
	client *http.Client

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

// NewHTTPReporter creates a reporter for url with the given request timeout.
func NewHTTPReporter(url string, timeout time.Duration) *HTTPReporter {
	return &HTTPReporter{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Publish starts a POST in the background. It returns ErrBusy, without
// sending, when the previous POST has not finished.
func (h *HTTPReporter) Publish(r logic.Report) error {
	body, err := FormatReport(r)
	if err != nil {
		return fmt.Errorf("format report: %w", err)
	}
	if !h.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.inFlight.Store(false)
		h.send(body)
	}()
	return nil
}

func (h *HTTPReporter) send(body []byte) {
	req, err := http.NewRequest(http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("http report error: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		log.Printf("http report error: %v", err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	if err != nil {
		log.Printf("http report: read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("http report error: status %d: %s", resp.StatusCode, respBody)
		return
	}
	log.Printf("http report sent %s: status %d: %s", body, resp.StatusCode, respBody)
}

// InFlight reports whether a POST is running.
func (h *HTTPReporter) InFlight() bool {
	return h.inFlight.Load()
}

// Wait blocks until the in-flight POST, if any, finishes.
func (h *HTTPReporter) Wait() {
	h.wg.Wait()
}
