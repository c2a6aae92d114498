// Package wal implements the engine's write-ahead log: a fixed-layout
// binary record format, append-only sharded files, and crash replay.
package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// State mirrors engine.State without importing the engine package (which
// would create an import cycle); the two enumerations are kept in the
// same order by convention, and the engine converts between them with
// explicit switches.
type State uint16

const (
	StateReady State = iota
	StateDelayed
	StateReserved
	StateBuried
	StateInvalid
)

// Record is one entry in the log: either a full job snapshot (the
// job's put) or a delta carrying only the fields a later mutation
// changed. Tube and Body are populated only on full records.
type Record struct {
	ID         uint64
	Delay      uint32
	TTR        uint32
	Priority   uint32
	CreatedAt  uint64
	DeadlineAt uint64
	State      State
	Reserves   uint32
	Timeouts   uint32
	Releases   uint32
	Buries     uint32
	Kicks      uint32
	Tube       string
	Body       []byte
	Full       bool
}

// headerSize is the length, in bytes, of every fixed-width field up to
// and including tube_name_length.
const headerSize = 62

// Encode writes rec to w in the fixed binary layout:
// big-endian fixed fields, followed by the tube name and body (both
// zero-length for a delta record).
func (rec Record) Encode(w io.Writer) error {
	var tube []byte
	var body []byte
	if rec.Full {
		tube = []byte(rec.Tube)
		body = rec.Body
	}

	buf := make([]byte, headerSize+len(tube)+4+len(body))
	binary.BigEndian.PutUint64(buf[0:8], rec.ID)
	binary.BigEndian.PutUint32(buf[8:12], rec.Delay)
	binary.BigEndian.PutUint32(buf[12:16], rec.TTR)
	binary.BigEndian.PutUint32(buf[16:20], rec.Priority)
	binary.BigEndian.PutUint64(buf[20:28], rec.CreatedAt)
	binary.BigEndian.PutUint64(buf[28:36], rec.DeadlineAt)
	binary.BigEndian.PutUint16(buf[36:38], uint16(rec.State))
	binary.BigEndian.PutUint32(buf[38:42], rec.Reserves)
	binary.BigEndian.PutUint32(buf[42:46], rec.Timeouts)
	binary.BigEndian.PutUint32(buf[46:50], rec.Releases)
	binary.BigEndian.PutUint32(buf[50:54], rec.Buries)
	binary.BigEndian.PutUint32(buf[54:58], rec.Kicks)
	binary.BigEndian.PutUint32(buf[58:62], uint32(len(tube)))
	off := headerSize
	copy(buf[off:], tube)
	off += len(tube)
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(body)))
	off += 4
	copy(buf[off:], body)

	_, err := w.Write(buf)
	return err
}

// DecodeRecord reads one record from r. It returns io.EOF itself when
// the remaining bytes do not form a complete record, which the replay
// loop treats as end-of-file rather than a fatal error — an unreadable
// tail is the expected shape of a log truncated mid-append.
func DecodeRecord(r *bufio.Reader) (Record, error) {
	var rec Record
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Record{}, io.EOF
	}
	rec.ID = binary.BigEndian.Uint64(header[0:8])
	rec.Delay = binary.BigEndian.Uint32(header[8:12])
	rec.TTR = binary.BigEndian.Uint32(header[12:16])
	rec.Priority = binary.BigEndian.Uint32(header[16:20])
	rec.CreatedAt = binary.BigEndian.Uint64(header[20:28])
	rec.DeadlineAt = binary.BigEndian.Uint64(header[28:36])
	rec.State = State(binary.BigEndian.Uint16(header[36:38]))
	rec.Reserves = binary.BigEndian.Uint32(header[38:42])
	rec.Timeouts = binary.BigEndian.Uint32(header[42:46])
	rec.Releases = binary.BigEndian.Uint32(header[46:50])
	rec.Buries = binary.BigEndian.Uint32(header[50:54])
	rec.Kicks = binary.BigEndian.Uint32(header[54:58])
	tubeLen := binary.BigEndian.Uint32(header[58:62])

	if tubeLen > 0 {
		tube := make([]byte, tubeLen)
		if _, err := io.ReadFull(r, tube); err != nil {
			return Record{}, io.EOF
		}
		rec.Tube = string(tube)
	}

	bodyLenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, bodyLenBuf); err != nil {
		return Record{}, io.EOF
	}
	bodyLen := binary.BigEndian.Uint32(bodyLenBuf)
	if bodyLen > 0 {
		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return Record{}, io.EOF
		}
		rec.Body = body
	}

	rec.Full = tubeLen > 0
	return rec, nil
}

func (rec Record) String() string {
	kind := "delta"
	if rec.Full {
		kind = "full"
	}
	return fmt.Sprintf("wal.Record{id=%d kind=%s state=%d}", rec.ID, kind, rec.State)
}
