package led

// Fake records indicator changes for test assertions.
type Fake struct {
	// On is the current indicator state.
	On bool

	// Changes counts transitions between on and off.
	Changes int

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// Set records the requested state.
func (f *Fake) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	if on != f.On {
		f.Changes++
	}
	f.On = on
	return nil
}

// Close turns the fake off and marks it closed.
func (f *Fake) Close() error {
	f.On = false
	f.Closed = true
	return nil
}
