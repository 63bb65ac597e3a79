package device

import (
	"log"
	"time"
)

// Builder configures and creates Devices.
type Builder struct {
	host          string
	cmdPort       int
	dmaReadPort   int
	dmaWritePort  int
	acceptTimeout time.Duration
	handler       Handler
	log           *log.Logger
}

// MakeBuilder creates a Builder listening on the default loopback endpoint.
func MakeBuilder() Builder {
	return Builder{
		host:          "127.0.0.1",
		cmdPort:       6000,
		dmaReadPort:   6001,
		dmaWritePort:  6002,
		acceptTimeout: 5 * time.Second,
		log:           log.Default(),
	}
}

// WithHost sets the address to listen on.
func (b Builder) WithHost(host string) Builder {
	b.host = host
	return b
}

// WithPorts sets the command, DMA read, and DMA write ports. Port 0 lets the
// kernel pick; the bound ports are available from Device.Ports.
func (b Builder) WithPorts(cmd, dmaRead, dmaWrite int) Builder {
	b.cmdPort = cmd
	b.dmaReadPort = dmaRead
	b.dmaWritePort = dmaWrite
	return b
}

// WithAcceptTimeout sets how long the device waits for a peer that opened
// the command channel to finish connecting the two DMA channels before the
// partial connect is dropped.
func (b Builder) WithAcceptTimeout(d time.Duration) Builder {
	b.acceptTimeout = d
	return b
}

// WithHandler sets the functional model.
func (b Builder) WithHandler(h Handler) Builder {
	b.handler = h
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l *log.Logger) Builder {
	b.log = l
	return b
}

// Build creates a Device. Call Listen and Serve to run it.
func (b Builder) Build() *Device {
	if b.handler == nil {
		panic("device: a handler is required")
	}

	return &Device{
		host:          b.host,
		cmdPort:       b.cmdPort,
		dmaReadPort:   b.dmaReadPort,
		dmaWritePort:  b.dmaWritePort,
		acceptTimeout: b.acceptTimeout,
		handler:       b.handler,
		log:           b.log,
	}
}
