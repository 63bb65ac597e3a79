package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// All records are serialized little-endian, matching the byte order the
// memory adapter uses to assemble values.

// WriteCmdReq sends a command request on w.
func WriteCmdReq(w io.Writer, req CmdReq) error {
	var buf [CmdReqSize]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(MsgKindCmdReq))
	binary.LittleEndian.PutUint32(buf[4:], req.Reserved)
	binary.LittleEndian.PutUint32(buf[8:], req.Funct)
	binary.LittleEndian.PutUint32(buf[12:], req.Pad)
	binary.LittleEndian.PutUint64(buf[16:], req.XS1)
	binary.LittleEndian.PutUint64(buf[24:], req.XS2)
	_, err := w.Write(buf[:])
	return err
}

// ReadCmdReq receives a command request from r. It fails if the kind tag is
// not MsgKindCmdReq.
func ReadCmdReq(r io.Reader) (CmdReq, error) {
	var buf [CmdReqSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return CmdReq{}, err
	}

	req := CmdReq{
		Header: Header{
			Kind:     MsgKind(binary.LittleEndian.Uint32(buf[0:])),
			Reserved: binary.LittleEndian.Uint32(buf[4:]),
		},
		Funct: binary.LittleEndian.Uint32(buf[8:]),
		Pad:   binary.LittleEndian.Uint32(buf[12:]),
		XS1:   binary.LittleEndian.Uint64(buf[16:]),
		XS2:   binary.LittleEndian.Uint64(buf[24:]),
	}

	if req.Kind != MsgKindCmdReq {
		return CmdReq{}, fmt.Errorf("unexpected message kind %d, want %d",
			req.Kind, MsgKindCmdReq)
	}

	return req, nil
}

// WriteCmdRsp sends a command response on w.
func WriteCmdRsp(w io.Writer, rsp CmdRsp) error {
	var buf [CmdRspSize]byte
	binary.LittleEndian.PutUint64(buf[0:], rsp.Result)
	_, err := w.Write(buf[:])
	return err
}

// ReadCmdRsp receives a command response from r.
func ReadCmdRsp(r io.Reader) (CmdRsp, error) {
	var buf [CmdRspSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return CmdRsp{}, err
	}
	return CmdRsp{Result: binary.LittleEndian.Uint64(buf[0:])}, nil
}

// WriteDMAReadReq sends a DMA read request on w.
func WriteDMAReadReq(w io.Writer, req DMAReadReq) error {
	var buf [DMAReadReqSize]byte
	binary.LittleEndian.PutUint64(buf[0:], req.Addr)
	binary.LittleEndian.PutUint32(buf[8:], req.Size)
	_, err := w.Write(buf[:])
	return err
}

// ReadDMAReadReq receives a DMA read request from r.
func ReadDMAReadReq(r io.Reader) (DMAReadReq, error) {
	var buf [DMAReadReqSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return DMAReadReq{}, err
	}
	return DMAReadReq{
		Addr: binary.LittleEndian.Uint64(buf[0:]),
		Size: binary.LittleEndian.Uint32(buf[8:]),
	}, nil
}

// WriteDMAReadRsp sends a DMA read response on w.
func WriteDMAReadRsp(w io.Writer, rsp DMAReadRsp) error {
	var buf [DMAReadRspSize]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(MsgKindDMAReadRsp))
	binary.LittleEndian.PutUint32(buf[4:], rsp.Reserved)
	binary.LittleEndian.PutUint64(buf[8:], rsp.DataLo)
	binary.LittleEndian.PutUint64(buf[16:], rsp.DataHi)
	_, err := w.Write(buf[:])
	return err
}

// ReadDMAReadRsp receives a DMA read response from r and checks its kind tag.
func ReadDMAReadRsp(r io.Reader) (DMAReadRsp, error) {
	var buf [DMAReadRspSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return DMAReadRsp{}, err
	}

	rsp := DMAReadRsp{
		Header: Header{
			Kind:     MsgKind(binary.LittleEndian.Uint32(buf[0:])),
			Reserved: binary.LittleEndian.Uint32(buf[4:]),
		},
		DataLo: binary.LittleEndian.Uint64(buf[8:]),
		DataHi: binary.LittleEndian.Uint64(buf[16:]),
	}

	if rsp.Kind != MsgKindDMAReadRsp {
		return DMAReadRsp{}, fmt.Errorf("unexpected message kind %d, want %d",
			rsp.Kind, MsgKindDMAReadRsp)
	}

	return rsp, nil
}

// WriteDMAWriteReq sends a DMA write request on w.
func WriteDMAWriteReq(w io.Writer, req DMAWriteReq) error {
	var buf [DMAWriteReqSize]byte
	binary.LittleEndian.PutUint64(buf[0:], req.Addr)
	binary.LittleEndian.PutUint64(buf[8:], req.DataLo)
	binary.LittleEndian.PutUint64(buf[16:], req.DataHi)
	binary.LittleEndian.PutUint32(buf[24:], req.Size)
	_, err := w.Write(buf[:])
	return err
}

// ReadDMAWriteReq receives a DMA write request from r.
func ReadDMAWriteReq(r io.Reader) (DMAWriteReq, error) {
	var buf [DMAWriteReqSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return DMAWriteReq{}, err
	}
	return DMAWriteReq{
		Addr:   binary.LittleEndian.Uint64(buf[0:]),
		DataLo: binary.LittleEndian.Uint64(buf[8:]),
		DataHi: binary.LittleEndian.Uint64(buf[16:]),
		Size:   binary.LittleEndian.Uint32(buf[24:]),
	}, nil
}

// WriteDMAWriteRsp sends a DMA write acknowledgment on w.
func WriteDMAWriteRsp(w io.Writer, rsp DMAWriteRsp) error {
	var buf [DMAWriteRspSize]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(MsgKindDMAWriteRsp))
	binary.LittleEndian.PutUint32(buf[4:], rsp.Header.Reserved)
	binary.LittleEndian.PutUint32(buf[8:], rsp.Reserved)
	_, err := w.Write(buf[:])
	return err
}

// ReadDMAWriteRsp receives a DMA write acknowledgment from r and checks its
// kind tag.
func ReadDMAWriteRsp(r io.Reader) (DMAWriteRsp, error) {
	var buf [DMAWriteRspSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return DMAWriteRsp{}, err
	}

	rsp := DMAWriteRsp{
		Header: Header{
			Kind:     MsgKind(binary.LittleEndian.Uint32(buf[0:])),
			Reserved: binary.LittleEndian.Uint32(buf[4:]),
		},
		Reserved: binary.LittleEndian.Uint32(buf[8:]),
	}

	if rsp.Kind != MsgKindDMAWriteRsp {
		return DMAWriteRsp{}, fmt.Errorf("unexpected message kind %d, want %d",
			rsp.Kind, MsgKindDMAWriteRsp)
	}

	return rsp, nil
}
