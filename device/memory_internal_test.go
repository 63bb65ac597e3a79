package device

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/cosim/mem"
	"github.com/sarchlab/cosim/wire"
)

func TestMemoryReadFraming(t *testing.T) {
	hostSide, deviceSide := net.Pipe()
	defer hostSide.Close()
	defer deviceSide.Close()

	memory := &Memory{readConn: deviceSide}

	go func() {
		req, err := wire.ReadDMAReadReq(hostSide)
		if err != nil {
			return
		}
		_ = wire.WriteDMAReadRsp(hostSide, wire.DMAReadRsp{
			DataLo: req.Addr + uint64(req.Size),
			DataHi: 7,
		})
	}()

	data, err := memory.Read(0x1000, 16)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1010), data.Lo)
	assert.Equal(t, uint64(7), data.Hi)
}

func TestMemoryWriteFraming(t *testing.T) {
	hostSide, deviceSide := net.Pipe()
	defer hostSide.Close()
	defer deviceSide.Close()

	memory := &Memory{writeConn: deviceSide}

	received := make(chan wire.DMAWriteReq, 1)
	go func() {
		req, err := wire.ReadDMAWriteReq(hostSide)
		if err != nil {
			return
		}
		received <- req
		_ = wire.WriteDMAWriteRsp(hostSide, wire.DMAWriteRsp{})
	}()

	err := memory.Write(0x2000, mem.Data128{Lo: 0xaa, Hi: 0xbb}, 16)
	require.NoError(t, err)

	req := <-received
	assert.Equal(t, uint64(0x2000), req.Addr)
	assert.Equal(t, uint64(0xaa), req.DataLo)
	assert.Equal(t, uint64(0xbb), req.DataHi)
	assert.Equal(t, uint32(16), req.Size)
}

func TestMemoryReadFailsOnClosedChannel(t *testing.T) {
	hostSide, deviceSide := net.Pipe()
	defer deviceSide.Close()

	memory := &Memory{readConn: deviceSide}
	hostSide.Close()

	_, err := memory.Read(0, 8)
	assert.Error(t, err)
}
