package mqtt

// FakePublisher records what would have been sent to the broker. Payloads
// are encoded exactly as RealPublisher would, so tests can decode them.
// Not safe for concurrent use.
type FakePublisher struct {
	Events   []KeyEvent
	Payloads [][]byte
	Encoding Encoding // key event payload format, empty means JSON

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// Errors returned by Publish and PublishSystem. Nothing is recorded
	// for a call that fails.
	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool // returned by IsConnected
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(event KeyEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := EncodePayload(event, f.Encoding)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears everything except the payload encoding.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{Encoding: f.Encoding}
}
