// Package mem bridges the byte-addressable memory of the host simulator and
// the up-to-128-bit values that the co-simulation protocol transfers.
package mem

import "fmt"

// ByteAccessor is the byte-granular memory capability the host simulator
// supplies. Wider accesses are composed from single-byte loads and stores.
// Implementations must be safe for concurrent use: the DMA read and DMA
// write channels are serviced independently, so a load and a store can be
// in flight at the same time.
type ByteAccessor interface {
	LoadByte(addr uint64) (byte, error)
	StoreByte(addr uint64, v byte) error
}

// Data128 holds up to 16 bytes of transferred data. Bytes [0,8) of the
// transfer map to Lo, bytes [8,16) map to Hi. For accesses narrower than 16
// bytes the unused bits are zero.
type Data128 struct {
	Lo uint64
	Hi uint64
}

// UnsupportedWidthError reports an access width outside {1, 2, 4, 8, 16}.
type UnsupportedWidthError struct {
	Size uint32
}

func (e UnsupportedWidthError) Error() string {
	return fmt.Sprintf("unsupported access width %d", e.Size)
}

func validWidth(size uint32) bool {
	switch size {
	case 1, 2, 4, 8, 16:
		return true
	}
	return false
}

// ReadValue loads size bytes at addr and assembles them
// least-significant-byte first, independent of the host byte order.
func ReadValue(m ByteAccessor, addr uint64, size uint32) (Data128, error) {
	if !validWidth(size) {
		return Data128{}, UnsupportedWidthError{Size: size}
	}

	var data Data128
	if size == 16 {
		lo, err := readUint(m, addr, 8)
		if err != nil {
			return Data128{}, err
		}
		hi, err := readUint(m, addr+8, 8)
		if err != nil {
			return Data128{}, err
		}
		data.Lo, data.Hi = lo, hi
		return data, nil
	}

	lo, err := readUint(m, addr, size)
	if err != nil {
		return Data128{}, err
	}
	data.Lo = lo

	return data, nil
}

// WriteValue stores the low size bytes of data at addr,
// least-significant-byte first.
func WriteValue(m ByteAccessor, addr uint64, data Data128, size uint32) error {
	if !validWidth(size) {
		return UnsupportedWidthError{Size: size}
	}

	if size == 16 {
		if err := writeUint(m, addr, data.Lo, 8); err != nil {
			return err
		}
		return writeUint(m, addr+8, data.Hi, 8)
	}

	return writeUint(m, addr, data.Lo, size)
}

func readUint(m ByteAccessor, addr uint64, size uint32) (uint64, error) {
	var value uint64
	for i := uint32(0); i < size; i++ {
		b, err := m.LoadByte(addr + uint64(i))
		if err != nil {
			return 0, err
		}
		value |= uint64(b) << (8 * i)
	}
	return value, nil
}

func writeUint(m ByteAccessor, addr uint64, value uint64, size uint32) error {
	for i := uint32(0); i < size; i++ {
		b := byte(value >> (8 * i))
		if err := m.StoreByte(addr+uint64(i), b); err != nil {
			return err
		}
	}
	return nil
}
