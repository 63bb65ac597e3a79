package mem_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cosim/mem"
)

var _ = Describe("Storage", func() {
	It("should read and write within a single page", func() {
		storage := mem.NewStorage(4096)
		Expect(storage.Write(0, []byte{1, 2, 3, 4})).To(Succeed())

		res, err := storage.Read(0, 2)
		Expect(err).ToNot(HaveOccurred())
		Expect(res).To(Equal([]byte{1, 2}))

		res, err = storage.Read(1, 2)
		Expect(err).ToNot(HaveOccurred())
		Expect(res).To(Equal([]byte{2, 3}))
	})

	It("should read and write across pages", func() {
		storage := mem.NewStorage(8192)
		Expect(storage.Write(4094, []byte{1, 2, 3, 4})).To(Succeed())

		res, err := storage.Read(4094, 4)
		Expect(err).ToNot(HaveOccurred())
		Expect(res).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should access single bytes", func() {
		storage := mem.NewStorage(4096)
		Expect(storage.StoreByte(100, 0xab)).To(Succeed())

		b, err := storage.LoadByte(100)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(Equal(byte(0xab)))
	})

	It("should support concurrent loads and stores on fresh pages", func() {
		storage := mem.NewStorage(1 << 20)

		var wg sync.WaitGroup
		wg.Add(2)

		// Both goroutines fault in pages as they go, the way the two DMA
		// channels touch memory at the same time.
		go func() {
			defer wg.Done()
			for i := uint64(0); i < 64; i++ {
				Expect(storage.StoreByte(i*4096, byte(i))).To(Succeed())
			}
		}()

		go func() {
			defer wg.Done()
			for i := uint64(0); i < 64; i++ {
				_, err := storage.LoadByte(i*4096 + 1)
				Expect(err).ToNot(HaveOccurred())
			}
		}()

		wg.Wait()

		for i := uint64(0); i < 64; i++ {
			b, err := storage.LoadByte(i * 4096)
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal(byte(i)))
		}
	})

	It("should return an error beyond the capacity", func() {
		storage := mem.NewStorage(4096)

		Expect(storage.Write(4096, []byte{1})).ToNot(Succeed())

		_, err := storage.Read(4096, 1)
		Expect(err).To(HaveOccurred())

		_, err = storage.LoadByte(4096)
		Expect(err).To(HaveOccurred())
	})
})
