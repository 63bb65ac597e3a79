package recording

import (
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/cosim/mem"
)

// Table names used by the Tracer.
const (
	CommandTable     = "command_dispatch"
	DMATransferTable = "dma_transfer"
)

// CommandRow is one completed command dispatch. Operands and results are
// stored as hex strings so 64-bit values survive the SQLite integer type.
type CommandRow struct {
	DispatchID string
	Funct      uint32
	XS1        string
	XS2        string
	Result     string
	Status     string
	StartTime  string
	EndTime    string
}

// DMARow is one DMA transfer serviced during a dispatch.
type DMARow struct {
	Direction string
	Addr      string
	Size      uint32
	DataLo    string
	DataHi    string
	Time      string
}

type pendingCommand struct {
	funct    uint32
	xs1, xs2 uint64
	start    time.Time
}

// A Tracer records session traffic through a DataRecorder. It implements
// the bridge.Tracer interface.
type Tracer struct {
	recorder DataRecorder

	mu      sync.Mutex
	pending map[string]pendingCommand
}

// NewTracer creates a Tracer and its two tables.
func NewTracer(recorder DataRecorder) *Tracer {
	recorder.CreateTable(CommandTable, CommandRow{})
	recorder.CreateTable(DMATransferTable, DMARow{})

	return &Tracer{
		recorder: recorder,
		pending:  make(map[string]pendingCommand),
	}
}

// CommandStart remembers an in-flight dispatch.
func (t *Tracer) CommandStart(dispatchID string, funct uint32, xs1, xs2 uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending[dispatchID] = pendingCommand{
		funct: funct,
		xs1:   xs1,
		xs2:   xs2,
		start: time.Now(),
	}
}

// CommandEnd records the completed dispatch.
func (t *Tracer) CommandEnd(dispatchID string, result uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cmd, ok := t.pending[dispatchID]
	delete(t.pending, dispatchID)
	if !ok {
		return
	}

	status := "ok"
	if err != nil {
		status = err.Error()
	}

	t.recorder.InsertData(CommandTable, CommandRow{
		DispatchID: dispatchID,
		Funct:      cmd.funct,
		XS1:        hex64(cmd.xs1),
		XS2:        hex64(cmd.xs2),
		Result:     hex64(result),
		Status:     status,
		StartTime:  timestamp(cmd.start),
		EndTime:    timestamp(time.Now()),
	})
}

// DMARead records one serviced DMA read.
func (t *Tracer) DMARead(addr uint64, size uint32, data mem.Data128) {
	t.insertDMA("read", addr, size, data)
}

// DMAWrite records one serviced DMA write.
func (t *Tracer) DMAWrite(addr uint64, data mem.Data128, size uint32) {
	t.insertDMA("write", addr, size, data)
}

func (t *Tracer) insertDMA(dir string, addr uint64, size uint32, data mem.Data128) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.recorder.InsertData(DMATransferTable, DMARow{
		Direction: dir,
		Addr:      hex64(addr),
		Size:      size,
		DataLo:    hex64(data.Lo),
		DataHi:    hex64(data.Hi),
		Time:      timestamp(time.Now()),
	})
}

func hex64(v uint64) string {
	return fmt.Sprintf("0x%016x", v)
}

func timestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000000000")
}
