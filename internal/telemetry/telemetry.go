// Package telemetry publishes node readings: as push notifications while in
// push mode, and as periodic HTTP reports while joined to a network.
// Publishing is fire-and-forget. Failures are logged and never retried; the
// next periodic tick is the only retry.
package telemetry

import (
	"encoding/json"
	"log"
	"strconv"

	"github.com/sweeney/conveyor-sensor/internal/logic"
)

// Push channel value slots, in publish order.
const (
	SlotBoxCount = "box_count"
	SlotAngle    = "angle"
)

// PushChannel is a notification channel with independently updated
// value slots.
type PushChannel interface {
	// SetValue stores the slot's current value.
	SetValue(slot string, value []byte) error

	// Notify pushes the slot's current value to subscribers.
	// It does not wait for acknowledgement.
	Notify(slot string) error

	Close() error
}

// ReportPayload is the JSON body of an HTTP report.
type ReportPayload struct {
	Angle    int    `json:"angulo"`
	BoxCount uint32 `json:"conteo_cajas"`
}

// FormatReport creates the JSON body for a report.
func FormatReport(r logic.Report) ([]byte, error) {
	return json.Marshal(ReportPayload{Angle: r.Angle, BoxCount: r.BoxCount})
}

// PushPublisher writes reports to the two push slots.
type PushPublisher struct {
	ch PushChannel
}

// NewPushPublisher creates a publisher over ch. A nil channel is allowed:
// every publish is then skipped and logged.
func NewPushPublisher(ch PushChannel) *PushPublisher {
	return &PushPublisher{ch: ch}
}

// Publish sets and notifies the box count slot, then the angle slot.
// Errors are logged only.
func (p *PushPublisher) Publish(r logic.Report) {
	if p.ch == nil {
		log.Printf("push skipped: channel not open (boxes=%d angle=%d)", r.BoxCount, r.Angle)
		return
	}
	p.push(SlotBoxCount, strconv.FormatUint(uint64(r.BoxCount), 10))
	p.push(SlotAngle, strconv.Itoa(r.Angle))
	log.Printf("push values updated: boxes=%d angle=%d", r.BoxCount, r.Angle)
}

func (p *PushPublisher) push(slot, value string) {
	if err := p.ch.SetValue(slot, []byte(value)); err != nil {
		log.Printf("push set %s error: %v", slot, err)
		return
	}
	if err := p.ch.Notify(slot); err != nil {
		log.Printf("push notify %s error: %v", slot, err)
	}
}

// Close closes the underlying channel, if any.
func (p *PushPublisher) Close() error {
	if p.ch == nil {
		return nil
	}
	return p.ch.Close()
}
