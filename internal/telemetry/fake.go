package telemetry

import "github.com/sweeney/conveyor-sensor/internal/logic"

// FakeReporter records reports for test assertions.
type FakeReporter struct {
	// Reports contains all dispatched reports.
	Reports []logic.Report

	// PublishError, if set, will be returned by Publish.
	PublishError error
}

// Publish records r.
func (f *FakeReporter) Publish(r logic.Report) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Reports = append(f.Reports, r)
	return nil
}
