package protocol

import (
	"net"

	"github.com/rs/zerolog"

	"github.com/hiveq/hiveq/internal/engine"
)

// Server accepts TCP connections and serves the beanstalkd protocol
// against a single shared engine.
type Server struct {
	eng *engine.Engine
	log zerolog.Logger
}

// NewServer builds a Server bound to eng.
func NewServer(eng *engine.Engine, log zerolog.Logger) *Server {
	return &Server{eng: eng, log: log}
}

// Serve accepts connections on ln until it returns an error (typically
// because ln was closed during shutdown).
func (s *Server) Serve(ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			return err
		}
		c := newConn(nc, s.eng, s.log)
		go c.serve()
	}
}
