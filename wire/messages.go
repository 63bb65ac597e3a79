// Package wire defines the fixed-layout records exchanged between the host
// simulator and the accelerator functional model. Every record has a fixed
// size; the record size is the only framing signal on the stream, so encode
// and decode must agree byte for byte.
package wire

// MsgKind tags a record with its schema.
type MsgKind uint32

const (
	MsgKindCmdReq MsgKind = iota
	MsgKindCmdRsp
	MsgKindDMAReadReq
	MsgKindDMAReadRsp
	MsgKindDMAWriteReq
	MsgKindDMAWriteRsp
)

// Record sizes in bytes on the wire.
const (
	HeaderSize      = 8
	CmdReqSize      = 32
	CmdRspSize      = 8
	DMAReadReqSize  = 12
	DMAReadRspSize  = 24
	DMAWriteReqSize = 28
	DMAWriteRspSize = 12
)

// Header prefixes the kind-tagged records.
type Header struct {
	Kind     MsgKind
	Reserved uint32
}

// CmdReq carries one decoded custom instruction to the accelerator.
type CmdReq struct {
	Header
	Funct uint32
	Pad   uint32
	XS1   uint64
	XS2   uint64
}

// CmdRsp carries the 64-bit result of one command back to the host. It is
// the only record without a kind tag; the command connection carries nothing
// else in that direction.
type CmdRsp struct {
	Result uint64
}

// DMAReadReq asks the host to read Size bytes of simulated memory at Addr.
type DMAReadReq struct {
	Addr uint64
	Size uint32
}

// DMAReadRsp returns up to 128 bits of data. For sizes below 16 bytes the
// unused high bits are zero.
type DMAReadRsp struct {
	Header
	DataLo uint64
	DataHi uint64
}

// DMAWriteReq asks the host to write Size bytes at Addr.
type DMAWriteReq struct {
	Addr   uint64
	DataLo uint64
	DataHi uint64
	Size   uint32
}

// DMAWriteRsp acknowledges a completed write.
type DMAWriteRsp struct {
	Header
	Reserved uint32
}
