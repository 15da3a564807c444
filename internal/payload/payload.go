package payload

import (
	"errors"
	"fmt"

	"picolink/internal/utils"
)

var (
	ErrPayloadFull       = errors.New("payload already holds all triplets")
	ErrPayloadIncomplete = errors.New("payload is incomplete")
)

// Payload is one complete uplink message.
type Payload [BytesPerMessage]byte

// Builder fills a payload triplet by triplet. It is a plain value owned by
// one cycle; the buffer is only handed out once every slot is filled.
type Builder struct {
	buf Payload
	n   int
}

// Append writes t at offset Len()*BytesPerTriplet.
func (b *Builder) Append(t Triplet) error {
	if b.n >= TripletsPerPayload {
		return ErrPayloadFull
	}
	copy(b.buf[b.n*BytesPerTriplet:], t[:])
	b.n++
	return nil
}

// Len is the number of triplets appended so far.
func (b *Builder) Len() int { return b.n }

func (b *Builder) Full() bool { return b.n == TripletsPerPayload }

// Payload returns a copy of the buffer, or ErrPayloadIncomplete.
func (b *Builder) Payload() (Payload, error) {
	if !b.Full() {
		return Payload{}, fmt.Errorf("%w: %d of %d triplets", ErrPayloadIncomplete, b.n, TripletsPerPayload)
	}
	return b.buf, nil
}

// Reset discards everything appended so far.
func (b *Builder) Reset() {
	*b = Builder{}
}

// Parse validates the length of a received message.
func Parse(data []byte) (Payload, error) {
	var p Payload
	if len(data) != BytesPerMessage {
		return p, fmt.Errorf("payload length %d, want %d", len(data), BytesPerMessage)
	}
	copy(p[:], data)
	return p, nil
}

// Triplets splits the payload in slot order.
func (p Payload) Triplets() [TripletsPerPayload]Triplet {
	var out [TripletsPerPayload]Triplet
	for i := range out {
		copy(out[i][:], p[i*BytesPerTriplet:])
	}
	return out
}

// Decode decodes every triplet in slot order.
func (p Payload) Decode() ([TripletsPerPayload]Reading, error) {
	var out [TripletsPerPayload]Reading
	for i, t := range p.Triplets() {
		r, err := t.Decode()
		if err != nil {
			return out, fmt.Errorf("slot %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

func (p Payload) String() string {
	return utils.BytesToHex(p[:])
}
