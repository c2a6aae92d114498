package protocol

import "github.com/hiveq/hiveq/internal/engine"

// Response keywords, byte-for-byte as the beanstalkd wire protocol
// defines them.
var (
	resInserted  = []byte("INSERTED")
	resBuried    = []byte("BURIED")
	resExpected  = []byte("EXPECTED_CRLF")
	resDraining  = []byte("DRAINING")
	resDeleted   = []byte("DELETED")
	resNotFound  = []byte("NOT_FOUND")
	resReleased  = []byte("RELEASED")
	resTouched   = []byte("TOUCHED")
	resFound     = []byte("FOUND")
	resReserved  = []byte("RESERVED")
	resTimedOut  = []byte("TIMED_OUT")
	resWatching  = []byte("WATCHING")
	resNotIgn    = []byte("NOT_IGNORED")
	resUsing     = []byte("USING")
	resKicked    = []byte("KICKED")
	resPaused    = []byte("PAUSED")
	resOK        = []byte("OK")
	resBadFormat = []byte("BAD_FORMAT")
	resUnknown   = []byte("UNKNOWN_COMMAND")
	resInternal  = []byte("INTERNAL_ERROR")
)

// errKeyword maps an engine.ErrKind to the response keyword the
// protocol sends back when a command fails.
func errKeyword(ek engine.ErrKind) []byte {
	switch ek {
	case engine.ErrBadFormat:
		return resBadFormat
	case engine.ErrNotFound:
		return resNotFound
	case engine.ErrNotIgnored:
		return resNotIgn
	case engine.ErrDraining:
		return resDraining
	case engine.ErrTimedOut:
		return resTimedOut
	default:
		return resInternal
	}
}
