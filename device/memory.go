package device

import (
	"fmt"
	"net"
	"sync"

	"github.com/sarchlab/cosim/mem"
	"github.com/sarchlab/cosim/wire"
)

// Memory is the functional model's window into the host simulator's memory.
// Each Read or Write is one synchronous request/response exchange on the
// corresponding DMA channel. The two channels are independent; a Read and a
// Write may be in flight at the same time.
type Memory struct {
	readConn  net.Conn
	writeConn net.Conn

	readMu  sync.Mutex
	writeMu sync.Mutex
}

// Read fetches size bytes (1, 2, 4, 8, or 16) of simulated memory at addr.
func (m *Memory) Read(addr uint64, size uint32) (mem.Data128, error) {
	m.readMu.Lock()
	defer m.readMu.Unlock()

	req := wire.DMAReadReq{Addr: addr, Size: size}
	if err := wire.WriteDMAReadReq(m.readConn, req); err != nil {
		return mem.Data128{}, fmt.Errorf("sending dma read request: %w", err)
	}

	rsp, err := wire.ReadDMAReadRsp(m.readConn)
	if err != nil {
		return mem.Data128{}, fmt.Errorf("receiving dma read response: %w", err)
	}

	return mem.Data128{Lo: rsp.DataLo, Hi: rsp.DataHi}, nil
}

// Write stores the low size bytes of data at addr in simulated memory.
func (m *Memory) Write(addr uint64, data mem.Data128, size uint32) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	req := wire.DMAWriteReq{
		Addr:   addr,
		DataLo: data.Lo,
		DataHi: data.Hi,
		Size:   size,
	}
	if err := wire.WriteDMAWriteReq(m.writeConn, req); err != nil {
		return fmt.Errorf("sending dma write request: %w", err)
	}

	if _, err := wire.ReadDMAWriteRsp(m.writeConn); err != nil {
		return fmt.Errorf("receiving dma write response: %w", err)
	}

	return nil
}

func (m *Memory) close() {
	m.readConn.Close()
	m.writeConn.Close()
}
