package bridge

import (
	"log"
	"time"

	"github.com/rs/xid"
)

// Builder configures and creates Sessions.
type Builder struct {
	cfg    Config
	log    *log.Logger
	tracer Tracer
}

// MakeBuilder creates a Builder with the default endpoint configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg: DefaultConfig(),
		log: log.Default(),
	}
}

// WithConfig replaces the whole endpoint configuration.
func (b Builder) WithConfig(cfg Config) Builder {
	b.cfg = cfg
	return b
}

// WithHost sets the accelerator host.
func (b Builder) WithHost(host string) Builder {
	b.cfg.Host = host
	return b
}

// WithPorts sets the command, DMA read, and DMA write ports.
func (b Builder) WithPorts(cmd, dmaRead, dmaWrite int) Builder {
	b.cfg.CmdPort = cmd
	b.cfg.DMAReadPort = dmaRead
	b.cfg.DMAWritePort = dmaWrite
	return b
}

// WithDialTimeout bounds connection establishment.
func (b Builder) WithDialTimeout(d time.Duration) Builder {
	b.cfg.DialTimeout = d
	return b
}

// WithLogger sets the logger the session reports transport errors to.
func (b Builder) WithLogger(l *log.Logger) Builder {
	b.log = l
	return b
}

// WithTracer attaches a tracer that observes commands and DMA traffic.
func (b Builder) WithTracer(t Tracer) Builder {
	b.tracer = t
	return b
}

// Build creates a Session. The session does not connect until the first
// Dispatch.
func (b Builder) Build() *Session {
	return &Session{
		id:     xid.New().String(),
		cfg:    b.cfg,
		log:    b.log,
		tracer: b.tracer,
	}
}
