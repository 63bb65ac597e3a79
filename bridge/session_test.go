package bridge_test

import (
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/cosim/bridge"
	"github.com/sarchlab/cosim/device"
	"github.com/sarchlab/cosim/mem"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// startDevice runs an in-process accelerator endpoint on kernel-picked ports
// and returns a session builder pointed at it.
func startDevice(t *testing.T, h device.Handler) bridge.Builder {
	t.Helper()

	d := device.MakeBuilder().
		WithPorts(0, 0, 0).
		WithHandler(h).
		WithLogger(quietLogger()).
		Build()
	require.NoError(t, d.Listen())

	go d.Serve()
	t.Cleanup(d.Close)

	cmd, dmaRead, dmaWrite := d.Ports()

	return bridge.MakeBuilder().
		WithPorts(cmd, dmaRead, dmaWrite).
		WithDialTimeout(time.Second).
		WithLogger(quietLogger())
}

func TestDispatchMoveInScenario(t *testing.T) {
	storage := mem.NewStorage(1 << 20)
	require.NoError(t, storage.Write(0x1000,
		[]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}))

	// The model pulls one 8-byte beat at operand A before responding, the
	// way a move-in instruction would.
	handler := device.HandlerFunc(
		func(cmd device.Command, memory *device.Memory) (uint64, error) {
			data, err := memory.Read(cmd.XS1, 8)
			if err != nil {
				return 0, err
			}
			return data.Lo, nil
		})

	s := startDevice(t, handler).Build()
	defer s.Close()

	operandB := uint64(3) | 64<<5 | 1<<15
	result, err := s.Dispatch(24, 0x1000, operandB, storage)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x8877665544332211), result,
		"the dispatched command must observe the DMA-read bytes")

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Dispatches)
	assert.Equal(t, uint64(1), stats.DMAReads)
}

func TestDispatchIsLazy(t *testing.T) {
	handler := device.HandlerFunc(
		func(cmd device.Command, _ *device.Memory) (uint64, error) {
			return cmd.XS1 + cmd.XS2, nil
		})

	s := startDevice(t, handler).Build()
	defer s.Close()

	assert.False(t, s.Ready(), "a fresh session must not be connected")

	result, err := s.Dispatch(1, 2, 3, mem.NewStorage(4096))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), result)
	assert.True(t, s.Ready())
}

func TestDispatchFIFOWithInterleavedDMA(t *testing.T) {
	storage := mem.NewStorage(1 << 20)

	// Each command reads 8 bytes at XS1, writes the value plus one to
	// XS1+0x100, and returns the value read.
	handler := device.HandlerFunc(
		func(cmd device.Command, memory *device.Memory) (uint64, error) {
			data, err := memory.Read(cmd.XS1, 8)
			if err != nil {
				return 0, err
			}

			err = memory.Write(cmd.XS1+0x100, mem.Data128{Lo: data.Lo + 1}, 8)
			if err != nil {
				return 0, err
			}

			return data.Lo, nil
		})

	s := startDevice(t, handler).Build()
	defer s.Close()

	const n = 20
	for i := 0; i < n; i++ {
		addr := uint64(0x2000 + i*8)
		want := uint64(1000 + i)
		require.NoError(t,
			mem.WriteValue(storage, addr, mem.Data128{Lo: want}, 8))

		got, err := s.Dispatch(7, addr, 0, storage)
		require.NoError(t, err)
		assert.Equal(t, want, got, "response %d must pair with request %d", i, i)

		after, err := mem.ReadValue(storage, addr+0x100, 8)
		require.NoError(t, err)
		assert.Equal(t, want+1, after.Lo,
			"the DMA write of dispatch %d must land before it returns", i)
	}

	stats := s.Stats()
	assert.Equal(t, uint64(n), stats.Dispatches)
	assert.Equal(t, uint64(n), stats.DMAReads)
	assert.Equal(t, uint64(n), stats.DMAWrites)
	assert.Equal(t, uint64(1), stats.Connects, "one connection for all dispatches")
}

func TestDispatchWithConcurrentDMAReadAndWrite(t *testing.T) {
	storage := mem.NewStorage(1 << 20)
	for i := uint64(0); i < 32; i++ {
		require.NoError(t,
			mem.WriteValue(storage, 0x1000+i*8, mem.Data128{Lo: i}, 8))
	}

	// The model streams reads and writes on both DMA channels at once, so
	// both responder loops hit the installed memory simultaneously.
	handler := device.HandlerFunc(
		func(cmd device.Command, memory *device.Memory) (uint64, error) {
			var wg sync.WaitGroup
			errs := make(chan error, 2)
			wg.Add(2)

			go func() {
				defer wg.Done()
				for i := uint64(0); i < 32; i++ {
					if _, err := memory.Read(0x1000+i*8, 8); err != nil {
						errs <- err
						return
					}
				}
			}()

			go func() {
				defer wg.Done()
				for i := uint64(0); i < 32; i++ {
					data := mem.Data128{Lo: 100 + i}
					err := memory.Write(0x9000+i*8, data, 8)
					if err != nil {
						errs <- err
						return
					}
				}
			}()

			wg.Wait()
			close(errs)
			if err := <-errs; err != nil {
				return 0, err
			}
			return cmd.XS1, nil
		})

	s := startDevice(t, handler).Build()
	defer s.Close()

	result, err := s.Dispatch(11, 0x42, 0, storage)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x42), result)

	for i := uint64(0); i < 32; i++ {
		got, err := mem.ReadValue(storage, 0x9000+i*8, 8)
		require.NoError(t, err)
		assert.Equal(t, 100+i, got.Lo)
	}

	stats := s.Stats()
	assert.Equal(t, uint64(32), stats.DMAReads)
	assert.Equal(t, uint64(32), stats.DMAWrites)
}

func TestDisconnectMidDispatchThenReconnect(t *testing.T) {
	handler := device.HandlerFunc(
		func(cmd device.Command, _ *device.Memory) (uint64, error) {
			if cmd.Funct == 99 {
				return 0, fmt.Errorf("model gave up")
			}
			return cmd.XS1, nil
		})

	s := startDevice(t, handler).Build()
	defer s.Close()

	_, err := s.Dispatch(99, 0, 0, mem.NewStorage(4096))
	require.Error(t, err, "the dispatch must fail, not hang")
	assert.False(t, s.Ready(), "the whole session must be torn down")

	result, err := s.Dispatch(1, 42, 0, mem.NewStorage(4096))
	require.NoError(t, err, "the next dispatch must reconnect")
	assert.Equal(t, uint64(42), result)
	assert.True(t, s.Ready())
	assert.Equal(t, uint64(2), s.Stats().Connects)
}

func TestConnectIsAllOrNothing(t *testing.T) {
	// Only the command and DMA-read endpoints exist; the DMA-write
	// connection attempt must fail and roll the other two back.
	cmdLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer cmdLn.Close()

	dmaReadLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer dmaReadLn.Close()

	deadLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadPort := deadLn.Addr().(*net.TCPAddr).Port
	deadLn.Close()

	s := bridge.MakeBuilder().
		WithPorts(
			cmdLn.Addr().(*net.TCPAddr).Port,
			dmaReadLn.Addr().(*net.TCPAddr).Port,
			deadPort).
		WithDialTimeout(time.Second).
		WithLogger(quietLogger()).
		Build()
	defer s.Close()

	_, err = s.Dispatch(1, 0, 0, mem.NewStorage(4096))
	require.Error(t, err)
	assert.False(t, s.Ready())
	assert.Zero(t, s.Stats().Connects)

	// The command connection that did open must have been rolled back.
	require.NoError(t,
		cmdLn.(*net.TCPListener).SetDeadline(time.Now().Add(2*time.Second)))
	conn, err := cmdLn.Accept()
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestPeerRequestingBadWidthFailsSession(t *testing.T) {
	handler := device.HandlerFunc(
		func(cmd device.Command, memory *device.Memory) (uint64, error) {
			_, err := memory.Read(cmd.XS1, 3)
			return 0, err
		})

	s := startDevice(t, handler).Build()
	defer s.Close()

	_, err := s.Dispatch(5, 0x100, 0, mem.NewStorage(4096))
	require.Error(t, err)
	assert.False(t, s.Ready())
}

func TestCloseUnblocksDispatch(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	handler := device.HandlerFunc(
		func(device.Command, *device.Memory) (uint64, error) {
			<-release
			return 0, nil
		})

	s := startDevice(t, handler).Build()

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Dispatch(1, 0, 0, mem.NewStorage(4096))
		errCh <- err
	}()

	// Wait for the dispatch to be in flight.
	for s.Stats().Dispatches == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	s.Close()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch did not return after Close")
	}

	assert.False(t, s.Ready())

	// Close is idempotent.
	s.Close()
}
