package mem

import (
	"fmt"
	"sync"
)

// A Storage is a sparse, paged backing store for simulated memory. Pages are
// allocated on first touch, so a large guest address space costs nothing
// until it is used. It implements ByteAccessor and can therefore stand in
// for the host simulator's memory in tests and in the stub device. Storage
// is safe for concurrent use.
type Storage struct {
	pageSize uint64
	capacity uint64

	mu    sync.Mutex
	pages map[uint64][]byte
}

// NewStorage creates a Storage holding capacity bytes.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		pageSize: 4096,
		capacity: capacity,
		pages:    make(map[uint64][]byte),
	}
}

// page returns the page containing addr, allocating it on first touch. The
// caller must hold s.mu.
func (s *Storage) page(addr uint64) ([]byte, error) {
	if addr >= s.capacity {
		return nil, fmt.Errorf(
			"address 0x%x is beyond the storage capacity 0x%x",
			addr, s.capacity)
	}

	base := addr - addr%s.pageSize
	p, ok := s.pages[base]
	if !ok {
		p = make([]byte, s.pageSize)
		s.pages[base] = p
	}

	return p, nil
}

// LoadByte returns the byte at addr.
func (s *Storage) LoadByte(addr uint64) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.page(addr)
	if err != nil {
		return 0, err
	}
	return p[addr%s.pageSize], nil
}

// StoreByte sets the byte at addr.
func (s *Storage) StoreByte(addr uint64, v byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.page(addr)
	if err != nil {
		return err
	}
	p[addr%s.pageSize] = v
	return nil
}

// Read copies n bytes starting at addr, crossing page boundaries as needed.
func (s *Storage) Read(addr, n uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]byte, n)

	for copied := uint64(0); copied < n; {
		curr := addr + copied
		p, err := s.page(curr)
		if err != nil {
			return nil, err
		}

		offset := curr % s.pageSize
		chunk := s.pageSize - offset
		if left := n - copied; left < chunk {
			chunk = left
		}

		copy(out[copied:copied+chunk], p[offset:offset+chunk])
		copied += chunk
	}

	return out, nil
}

// Write copies data into the storage starting at addr.
func (s *Storage) Write(addr uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := uint64(len(data))

	for copied := uint64(0); copied < n; {
		curr := addr + copied
		p, err := s.page(curr)
		if err != nil {
			return err
		}

		offset := curr % s.pageSize
		chunk := s.pageSize - offset
		if left := n - copied; left < chunk {
			chunk = left
		}

		copy(p[offset:offset+chunk], data[copied:copied+chunk])
		copied += chunk
	}

	return nil
}
