package bridge

import (
	"errors"
	"net"

	"github.com/sarchlab/cosim/mem"
	"github.com/sarchlab/cosim/wire"
)

// The responder loops run from connect until the first failure or until the
// session is closed. Each iteration blocks for a complete request record,
// serves it against the memory capability of the in-flight dispatch, and
// sends the response. A failed loop does not restart itself; it tears the
// whole session down and the next dispatch reconnects.

func (s *Session) serveDMARead(c *conns) {
	defer c.wg.Done()

	for {
		req, err := wire.ReadDMAReadReq(c.dmaRead)
		if err != nil {
			s.loopFailed(c, "dma read", err)
			return
		}

		memory := s.currentAccess()
		if memory == nil {
			s.log.Printf("cosim session %s: dma read request with no "+
				"command in flight", s.id)
			s.fail(c)
			return
		}

		value, err := mem.ReadValue(memory, req.Addr, req.Size)
		if err != nil {
			s.log.Printf("cosim session %s: dma read at 0x%x: %v",
				s.id, req.Addr, err)
			s.fail(c)
			return
		}

		s.dmaReads.Add(1)
		if s.tracer != nil {
			s.tracer.DMARead(req.Addr, req.Size, value)
		}

		rsp := wire.DMAReadRsp{DataLo: value.Lo, DataHi: value.Hi}
		if err := wire.WriteDMAReadRsp(c.dmaRead, rsp); err != nil {
			s.loopFailed(c, "dma read", err)
			return
		}
	}
}

func (s *Session) serveDMAWrite(c *conns) {
	defer c.wg.Done()

	for {
		req, err := wire.ReadDMAWriteReq(c.dmaWrite)
		if err != nil {
			s.loopFailed(c, "dma write", err)
			return
		}

		memory := s.currentAccess()
		if memory == nil {
			s.log.Printf("cosim session %s: dma write request with no "+
				"command in flight", s.id)
			s.fail(c)
			return
		}

		data := mem.Data128{Lo: req.DataLo, Hi: req.DataHi}
		if err := mem.WriteValue(memory, req.Addr, data, req.Size); err != nil {
			s.log.Printf("cosim session %s: dma write at 0x%x: %v",
				s.id, req.Addr, err)
			s.fail(c)
			return
		}

		s.dmaWrites.Add(1)
		if s.tracer != nil {
			s.tracer.DMAWrite(req.Addr, data, req.Size)
		}

		if err := wire.WriteDMAWriteRsp(c.dmaWrite, wire.DMAWriteRsp{}); err != nil {
			s.loopFailed(c, "dma write", err)
			return
		}
	}
}

// loopFailed handles a transport error on a responder channel. Errors caused
// by the session's own teardown are expected and not logged.
func (s *Session) loopFailed(c *conns, channel string, err error) {
	if !c.closed.Load() && !isClosedConnError(err) {
		s.log.Printf("cosim session %s: %s channel: %v", s.id, channel, err)
	}
	s.fail(c)
}

func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
