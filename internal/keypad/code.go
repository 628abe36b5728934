package keypad

// Code is the packed byte form of an Event: high nibble is the event
// kind, low nibble is the key.
type Code uint8

// Pack encodes kind and key into a Code. Only the low nibble of each is kept.
func Pack(kind EventKind, key Key) Code {
	return Code(uint8(kind)&0x0f<<4 | uint8(key)&0x0f)
}

// Kind returns the event kind stored in the high nibble.
func (c Code) Kind() EventKind {
	return EventKind(c >> 4)
}

// Key returns the key stored in the low nibble.
func (c Code) Key() Key {
	return Key(c & 0x0f)
}

// Event decodes c.
func (c Code) Event() Event {
	return Event{Kind: c.Kind(), Key: c.Key()}
}

// Unpack is shorthand for Code(b).Event().
func Unpack(b byte) Event {
	return Code(b).Event()
}
