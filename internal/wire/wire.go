// Package wire implements the length-agnostic, NUL-separated event framing
// used on the connection between a publisher and its subscribers.
//
// A publisher event is serialized as three NUL-terminated UTF-8 fields,
// concatenated with no outer framing, no magic number, and no version:
//
//	<name> 0x00 <location> 0x00 <description> 0x00
//
// A stream is simply a concatenation of such records; the connection itself
// is the envelope. NUL is the only byte guaranteed not to appear in a log
// line, which is what makes this framing both simple and safe without a
// length prefix.
package wire

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// minimumReadBufferSize is the smallest buffer the deframer will use to read
// from the underlying connection, matching the wire protocol's documented
// minimum.
const minimumReadBufferSize = 1024

// Event is a publisher-side record: the file that produced it, the
// directory it lives in, and the text appended since the last emission.
type Event struct {
	// Name is the watched file's base name.
	Name string
	// Location is the canonical directory containing the file.
	Location string
	// Description is the newly appended text.
	Description string
}

// Encode writes an Event to w in the three-field NUL-terminated format. It
// performs a single Write call per field plus its terminator; callers that
// need all three fields written atomically with respect to other writers on
// the same connection must serialize calls to Encode themselves (internal/hub
// does not use Encode: it hands each subscriber's writer goroutine one
// Marshal'd buffer per event).
func Encode(w io.Writer, event Event) error {
	fields := [3]string{event.Name, event.Location, event.Description}
	for _, field := range fields {
		if _, err := io.WriteString(w, field); err != nil {
			return errors.Wrap(err, "unable to write field")
		}
		if _, err := w.Write(nulTerminator[:]); err != nil {
			return errors.Wrap(err, "unable to write field terminator")
		}
	}
	return nil
}

// nulTerminator is the single-byte field separator/terminator.
var nulTerminator = [1]byte{0x00}

// Marshal serializes an Event into a single buffer, suitable for handing to
// the fan-out hub as one immutable message shared across every subscriber's
// send queue.
func Marshal(event Event) []byte {
	total := len(event.Name) + len(event.Location) + len(event.Description) + 3
	buffer := make([]byte, 0, total)
	buffer = append(buffer, event.Name...)
	buffer = append(buffer, 0)
	buffer = append(buffer, event.Location...)
	buffer = append(buffer, 0)
	buffer = append(buffer, event.Description...)
	buffer = append(buffer, 0)
	return buffer
}

// Decoder deframes a stream of Events from an underlying io.Reader through
// a read buffer of minimumReadBufferSize bytes; a field longer than the
// buffer is assembled across several refills (bufio.Reader already
// implements exactly the read-more-if-empty, scan-for-terminator discipline
// the wire format calls for).
type Decoder struct {
	reader *bufio.Reader
}

// NewDecoder creates a Decoder that reads framed events from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReaderSize(r, minimumReadBufferSize)}
}

// Decode reads the next complete Event from the stream. It returns an error
// (often io.EOF or a wrapped read error) when the stream ends or the
// underlying connection fails — the caller (internal/subscriber.Server)
// treats any error here as "receive failed, exit the receive loop."
func (d *Decoder) Decode() (Event, error) {
	name, err := d.readField()
	if err != nil {
		return Event{}, err
	}
	location, err := d.readField()
	if err != nil {
		return Event{}, err
	}
	description, err := d.readField()
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Location: location, Description: description}, nil
}

// readField reads bytes up to and including the next NUL terminator and
// returns the field content with the terminator stripped.
func (d *Decoder) readField() (string, error) {
	raw, err := d.reader.ReadBytes(0)
	if err != nil {
		return "", err
	}
	return string(raw[:len(raw)-1]), nil
}
