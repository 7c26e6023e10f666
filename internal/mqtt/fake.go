package mqtt

// Notification is one recorded Notify call.
type Notification struct {
	Topic string
	Value string
}

// FakeNotifier records notifications for test assertions.
type FakeNotifier struct {
	// Values holds the last value set per slot.
	Values map[string][]byte

	// Notifications contains every successful Notify, in order.
	Notifications []Notification

	// SetError, if set, will be returned by SetValue.
	SetError error

	// NotifyError, if set, will be returned by Notify.
	NotifyError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakeNotifier creates a FakeNotifier for testing.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{Values: make(map[string][]byte)}
}

// SetValue records the slot value.
func (f *FakeNotifier) SetValue(slot string, value []byte) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Values[slot] = append([]byte(nil), value...)
	return nil
}

// Notify records the slot's current value.
func (f *FakeNotifier) Notify(slot string) error {
	if f.NotifyError != nil {
		return f.NotifyError
	}
	f.Notifications = append(f.Notifications, Notification{
		Topic: SlotTopic(slot),
		Value: string(f.Values[slot]),
	})
	return nil
}

// Close marks the notifier as closed.
func (f *FakeNotifier) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake notifier is "connected".
func (f *FakeNotifier) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded notifications and injected errors.
func (f *FakeNotifier) Reset() {
	f.Values = make(map[string][]byte)
	f.Notifications = nil
	f.SetError = nil
	f.NotifyError = nil
	f.Closed = false
	f.Connected = false
}
