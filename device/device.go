// Package device implements the accelerator side of the co-simulation
// protocol: three listeners, one session at a time, a command serve loop
// that hands each decoded instruction to a functional model, and a DMA
// requester the model uses to reach the host simulator's memory.
package device

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sarchlab/cosim/wire"
)

// Command is one custom instruction delivered to the functional model.
type Command struct {
	Funct uint32
	XS1   uint64
	XS2   uint64
}

// A Handler implements the accelerator's semantics for one command. It may
// issue any number of DMA reads and writes through memory before returning;
// the returned value becomes the command's result. A non-nil error ends the
// session.
type Handler interface {
	Execute(cmd Command, memory *Memory) (uint64, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(cmd Command, memory *Memory) (uint64, error)

// Execute calls f.
func (f HandlerFunc) Execute(cmd Command, memory *Memory) (uint64, error) {
	return f(cmd, memory)
}

type session struct {
	cmd      net.Conn
	memory   *Memory
	closeOne sync.Once
}

func (s *session) close() {
	s.closeOne.Do(func() {
		s.cmd.Close()
		s.memory.close()
	})
}

// A Device listens on the three channel ports and serves sessions
// sequentially. The protocol is single-peer: one host simulator talks to one
// device at a time.
type Device struct {
	host          string
	cmdPort       int
	dmaReadPort   int
	dmaWritePort  int
	acceptTimeout time.Duration

	handler Handler
	log     *log.Logger

	cmdLn      net.Listener
	dmaReadLn  net.Listener
	dmaWriteLn net.Listener

	closed atomic.Bool

	mu      sync.Mutex
	current *session
}

// Listen binds the three listeners. Binding is all-or-nothing: if any port
// cannot be bound, the ones bound so far are closed.
func (d *Device) Listen() error {
	var err error

	d.cmdLn, err = net.Listen("tcp", addr(d.host, d.cmdPort))
	if err != nil {
		return fmt.Errorf("binding command port: %w", err)
	}

	d.dmaReadLn, err = net.Listen("tcp", addr(d.host, d.dmaReadPort))
	if err != nil {
		d.cmdLn.Close()
		return fmt.Errorf("binding dma read port: %w", err)
	}

	d.dmaWriteLn, err = net.Listen("tcp", addr(d.host, d.dmaWritePort))
	if err != nil {
		d.cmdLn.Close()
		d.dmaReadLn.Close()
		return fmt.Errorf("binding dma write port: %w", err)
	}

	return nil
}

func addr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// Ports returns the actually bound port numbers. Useful when the device was
// built with port 0 to let the kernel pick.
func (d *Device) Ports() (cmd, dmaRead, dmaWrite int) {
	return boundPort(d.cmdLn), boundPort(d.dmaReadLn), boundPort(d.dmaWriteLn)
}

func boundPort(ln net.Listener) int {
	if ln == nil {
		return 0
	}
	return ln.Addr().(*net.TCPAddr).Port
}

// Serve accepts sessions and runs their command loops until the device is
// closed.
func (d *Device) Serve() error {
	for {
		sess, err := d.accept()
		if err != nil {
			if d.closed.Load() {
				return nil
			}
			return err
		}

		d.serveSession(sess)
	}
}

// accept waits for the peer to connect all three channels, in the order the
// host connects them. The wire protocol has no session handshake, so
// channels are paired purely by arrival order; a peer that opened the
// command channel but never completed the trio (a rolled-back connect, a
// crashed host) would otherwise block the device forever. The two remaining
// accepts therefore carry a deadline, and an expired trio is abandoned so
// the next connect starts clean.
func (d *Device) accept() (*session, error) {
	for {
		cmdConn, err := d.cmdLn.Accept()
		if err != nil {
			return nil, err
		}

		dmaReadConn, err := acceptWithin(d.dmaReadLn, d.acceptTimeout)
		if err != nil {
			cmdConn.Close()
			if isAcceptTimeout(err) {
				d.log.Printf(
					"cosim device: peer abandoned connect, dropping it")
				continue
			}
			return nil, err
		}

		dmaWriteConn, err := acceptWithin(d.dmaWriteLn, d.acceptTimeout)
		if err != nil {
			cmdConn.Close()
			dmaReadConn.Close()
			if isAcceptTimeout(err) {
				d.log.Printf(
					"cosim device: peer abandoned connect, dropping it")
				continue
			}
			return nil, err
		}

		sess := &session{
			cmd:    cmdConn,
			memory: &Memory{readConn: dmaReadConn, writeConn: dmaWriteConn},
		}

		d.mu.Lock()
		d.current = sess
		d.mu.Unlock()

		return sess, nil
	}
}

func acceptWithin(ln net.Listener, timeout time.Duration) (net.Conn, error) {
	tcpLn := ln.(*net.TCPListener)

	if err := tcpLn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	defer tcpLn.SetDeadline(time.Time{})

	return tcpLn.Accept()
}

func isAcceptTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (d *Device) serveSession(sess *session) {
	defer sess.close()

	for {
		req, err := wire.ReadCmdReq(sess.cmd)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				d.log.Printf("cosim device: command channel: %v", err)
			}
			return
		}

		cmd := Command{Funct: req.Funct, XS1: req.XS1, XS2: req.XS2}
		result, err := d.handler.Execute(cmd, sess.memory)
		if err != nil {
			d.log.Printf("cosim device: funct %d: %v", cmd.Funct, err)
			return
		}

		if err := wire.WriteCmdRsp(sess.cmd, wire.CmdRsp{Result: result}); err != nil {
			d.log.Printf("cosim device: sending response: %v", err)
			return
		}
	}
}

// Close stops the device: it closes the listeners and the current session.
// Idempotent.
func (d *Device) Close() {
	if d.closed.Swap(true) {
		return
	}

	if d.cmdLn != nil {
		d.cmdLn.Close()
	}
	if d.dmaReadLn != nil {
		d.dmaReadLn.Close()
	}
	if d.dmaWriteLn != nil {
		d.dmaWriteLn.Close()
	}

	d.mu.Lock()
	sess := d.current
	d.mu.Unlock()

	if sess != nil {
		sess.close()
	}
}
