package protocol

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiveq/hiveq/internal/engine"
)

const maxLineSize = 8192

// conn handles one client connection's command loop: read a line, parse
// it, dispatch to the engine, write a response, repeat.
type conn struct {
	nc        net.Conn
	r         *bufio.Reader
	w         *bufio.Writer
	lineBuf   []byte
	sessionID string
	eng       *engine.Engine
	log       zerolog.Logger
}

func newConn(nc net.Conn, eng *engine.Engine, log zerolog.Logger) *conn {
	id := engine.NewSessionID()
	return &conn{
		nc:        nc,
		r:         bufio.NewReader(nc),
		w:         bufio.NewWriter(nc),
		lineBuf:   make([]byte, 0, 128),
		sessionID: id,
		eng:       eng,
		log:       log.With().Str("session", id).Str("peer", nc.RemoteAddr().String()).Logger(),
	}
}

// readLine reads one CRLF-terminated line and returns it without the
// trailing CRLF, accumulating across ReadSlice('\n') calls so an
// oversized line never allocates more than one copy of the exceeding
// remainder.
func (c *conn) readLine() ([]byte, error) {
	c.lineBuf = c.lineBuf[:0]
	for {
		s, err := c.r.ReadSlice('\n')
		c.lineBuf = append(c.lineBuf, s...)
		if err == nil {
			break
		}
		if err != bufio.ErrBufferFull {
			return nil, err
		}
		if len(c.lineBuf) > maxLineSize {
			return nil, errors.New("line too long")
		}
	}
	line := c.lineBuf
	if len(line) >= 2 && line[len(line)-2] == '\r' && line[len(line)-1] == '\n' {
		return line[:len(line)-2], nil
	}
	if len(line) >= 1 && line[len(line)-1] == '\n' {
		return line[:len(line)-1], nil
	}
	return line, nil
}

func (c *conn) serve() {
	defer c.nc.Close()
	defer c.eng.CloseSession(c.sessionID)
	c.eng.CreateSession(c.sessionID, engine.Worker)

	for {
		line, err := c.readLine()
		if err != nil {
			if err != io.EOF {
				c.log.Debug().Err(err).Msg("protocol: connection read error")
			}
			return
		}
		fields := splitFields(string(line))
		if len(fields) == 0 {
			c.writeLine(resUnknown)
			continue
		}
		if !c.dispatch(fields) {
			return
		}
		if err := c.w.Flush(); err != nil {
			return
		}
	}
}

// reserveWithDisconnectWatch runs fn (a blocking reserve call) while a
// second goroutine watches the raw connection for the peer going away.
// serve()'s own read loop can't notice a disconnect while fn is
// blocked, since fn is the only thing running on this goroutine; a
// client that vanishes mid-reserve would otherwise leak its session,
// its tube waiting-list entry, and this goroutine forever. On an
// observed read error the watcher closes the session directly, which
// wakes fn via the cancellation path in releaseSessionJobs.
func (c *conn) reserveWithDisconnectWatch(fn func() (*engine.Job, engine.ErrKind)) (*engine.Job, engine.ErrKind) {
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		buf := make([]byte, 1)
		_, err := c.nc.Read(buf)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return // fn finished first; the deadline below just woke us.
		}
		// Either a real disconnect, or the peer sent data instead of
		// waiting for a response (a protocol violation on a
		// synchronous connection). Either way the stream can't be
		// trusted any further: tear the session and connection down
		// rather than leave the reserve parked.
		c.eng.CloseSession(c.sessionID)
		c.nc.Close()
	}()

	job, ek := fn()
	c.nc.SetReadDeadline(time.Now())
	<-watchDone
	c.nc.SetReadDeadline(time.Time{})
	return job, ek
}

func (c *conn) writeLine(parts ...[]byte) {
	for i, p := range parts {
		if i > 0 {
			c.w.WriteByte(' ')
		}
		c.w.Write(p)
	}
	c.w.WriteString("\r\n")
}

func (c *conn) writeUint(n uint64) []byte {
	return strconv.AppendUint(nil, n, 10)
}

// writeBody writes a length-prefixed body line the way put/reserve/peek*
// deliver job payloads: "<keyword> <args...> <len>\r\n<body>\r\n".
func (c *conn) writeBody(body []byte, parts ...[]byte) {
	parts = append(parts, c.writeUint(uint64(len(body))))
	c.writeLine(parts...)
	c.w.Write(body)
	c.w.WriteString("\r\n")
}

func (c *conn) writeErr(ek engine.ErrKind) {
	c.writeLine(errKeyword(ek))
}

// readBody reads exactly n bytes of job payload plus its trailing CRLF,
// as declared by a put command's byte count.
func (c *conn) readBody(n int) ([]byte, bool) {
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, false
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return nil, false
	}
	return buf[:n], true
}
