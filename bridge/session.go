// Package bridge implements the host-simulator side of the co-simulation
// protocol: a synchronous command channel that ships decoded custom
// instructions to the accelerator process, plus two responder loops that
// serve the accelerator's DMA requests against simulated memory while a
// command is in flight.
package bridge

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"

	"github.com/sarchlab/cosim/mem"
	"github.com/sarchlab/cosim/wire"
)

// Tracer observes the traffic of one session. All methods are called from
// the dispatching goroutine or from a responder loop; implementations must
// be safe for concurrent use.
type Tracer interface {
	CommandStart(dispatchID string, funct uint32, xs1, xs2 uint64)
	CommandEnd(dispatchID string, result uint64, err error)
	DMARead(addr uint64, size uint32, data mem.Data128)
	DMAWrite(addr uint64, data mem.Data128, size uint32)
}

// conns bundles the three connections of one session generation. The two
// responder loops belong to the generation, not to the Session, so a stale
// loop can never touch a newer generation's connections.
type conns struct {
	cmd      net.Conn
	dmaRead  net.Conn
	dmaWrite net.Conn

	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (c *conns) closeAll() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cmd.Close()
		c.dmaRead.Close()
		c.dmaWrite.Close()
	})
}

// A Session owns the three connections to the accelerator endpoint. It
// connects lazily on the first dispatch, tears everything down on any
// transport error, and reconnects on the next use.
//
// Dispatch is strictly synchronous: at most one command is outstanding.
type Session struct {
	id     string
	cfg    Config
	log    *log.Logger
	tracer Tracer

	dispatchMu sync.Mutex

	mu    sync.Mutex
	ready bool
	conns *conns

	accessMu sync.RWMutex
	access   mem.ByteAccessor

	dispatches atomic.Uint64
	dmaReads   atomic.Uint64
	dmaWrites  atomic.Uint64
	connects   atomic.Uint64
	failures   atomic.Uint64
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Ready reports whether all three connections are currently established.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Dispatch sends one decoded custom instruction to the accelerator and
// blocks until its result arrives. memory is the byte-granular capability
// the responder loops serve DMA requests against; it is scoped to this
// dispatch only.
//
// On any transport error the whole session is torn down and the error is
// returned; the next Dispatch reconnects.
func (s *Session) Dispatch(
	funct uint32,
	xs1, xs2 uint64,
	memory mem.ByteAccessor,
) (uint64, error) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	c, err := s.ensureConnected()
	if err != nil {
		return 0, err
	}

	s.setAccess(memory)
	defer s.setAccess(nil)

	dispatchID := xid.New().String()
	s.dispatches.Add(1)
	if s.tracer != nil {
		s.tracer.CommandStart(dispatchID, funct, xs1, xs2)
	}

	result, err := s.roundTrip(c, funct, xs1, xs2)
	if s.tracer != nil {
		s.tracer.CommandEnd(dispatchID, result, err)
	}

	return result, err
}

func (s *Session) roundTrip(
	c *conns,
	funct uint32,
	xs1, xs2 uint64,
) (uint64, error) {
	req := wire.CmdReq{Funct: funct, XS1: xs1, XS2: xs2}
	if err := wire.WriteCmdReq(c.cmd, req); err != nil {
		s.fail(c)
		return 0, fmt.Errorf("sending command: %w", err)
	}

	rsp, err := wire.ReadCmdRsp(c.cmd)
	if err != nil {
		s.fail(c)
		return 0, fmt.Errorf("receiving command response: %w", err)
	}

	return rsp.Result, nil
}

// ensureConnected establishes the three connections if the session is not
// ready. Exactly one attempt is made per call.
func (s *Session) ensureConnected() (*conns, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return s.conns, nil
	}

	c, err := s.connect()
	if err != nil {
		return nil, err
	}

	s.conns = c
	s.ready = true

	return c, nil
}

// connect opens the three channels in order. If any of them fails, every
// connection opened so far is closed and the session stays not-ready.
func (s *Session) connect() (*conns, error) {
	d := net.Dialer{Timeout: s.cfg.DialTimeout}

	cmd, err := d.Dial("tcp", s.cfg.CmdAddr())
	if err != nil {
		return nil, fmt.Errorf("connecting command channel: %w", err)
	}

	dmaRead, err := d.Dial("tcp", s.cfg.DMAReadAddr())
	if err != nil {
		cmd.Close()
		return nil, fmt.Errorf("connecting dma read channel: %w", err)
	}

	dmaWrite, err := d.Dial("tcp", s.cfg.DMAWriteAddr())
	if err != nil {
		cmd.Close()
		dmaRead.Close()
		return nil, fmt.Errorf("connecting dma write channel: %w", err)
	}

	c := &conns{cmd: cmd, dmaRead: dmaRead, dmaWrite: dmaWrite}
	c.wg.Add(2)
	go s.serveDMARead(c)
	go s.serveDMAWrite(c)

	s.connects.Add(1)
	s.log.Printf("cosim session %s: connected to %s", s.id, s.cfg.CmdAddr())

	return c, nil
}

// fail closes all three connections of a generation and, if it is still the
// current one, marks the session not-ready. It never blocks on the responder
// loops, so it is safe to call from within them.
func (s *Session) fail(c *conns) {
	s.failures.Add(1)
	c.closeAll()

	s.mu.Lock()
	if s.conns == c {
		s.ready = false
		s.conns = nil
	}
	s.mu.Unlock()
}

// Close tears the session down and waits for both responder loops to exit.
// It is idempotent and safe to call concurrently with a blocked Dispatch,
// which will return an error once its connection is closed.
func (s *Session) Close() {
	s.mu.Lock()
	c := s.conns
	s.ready = false
	s.conns = nil
	s.mu.Unlock()

	if c == nil {
		return
	}

	c.closeAll()
	c.wg.Wait()
}

func (s *Session) setAccess(m mem.ByteAccessor) {
	s.accessMu.Lock()
	s.access = m
	s.accessMu.Unlock()
}

func (s *Session) currentAccess() mem.ByteAccessor {
	s.accessMu.RLock()
	defer s.accessMu.RUnlock()
	return s.access
}
