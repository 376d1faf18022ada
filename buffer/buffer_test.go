package buffer_test

import (
	"testing"

	"github.com/loopwire/reactor/buffer"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestBuffer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Buffer Suite")
}

var _ = Describe("Buffer", func() {
	It("round-trips arbitrary payloads byte for byte", func() {
		b := buffer.New()
		b.Write([]byte("ping\n"))
		Expect(b.ReadableBytes()).To(Equal(5))
		Expect(b.RetrieveAllAsString()).To(Equal("ping\n"))
		Expect(b.ReadableBytes()).To(Equal(0))
	})

	It("round-trips big-endian integer helpers", func() {
		b := buffer.New()
		b.WriteUint32(0xDEADBEEF)
		v, err := b.ReadUint32()
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(0xDEADBEEF)))
	})

	It("reports network byte order on the wire", func() {
		b := buffer.New()
		b.WriteUint16(0x0102)
		raw := b.Peek()
		Expect(raw[0]).To(Equal(byte(0x01)))
		Expect(raw[1]).To(Equal(byte(0x02)))
	})

	It("preserves prepend capacity across compaction", func() {
		b := buffer.New()
		b.Write(make([]byte, 100))
		b.Retrieve(100)
		// writable + prepend now collapse toward the prepend boundary
		b.EnsureWritable(10)
		Expect(b.PrependableBytes()).To(Equal(buffer.PrependSize))
	})

	It("prepends a length header in front of the payload", func() {
		b := buffer.New()
		b.Write([]byte("hello"))
		b.PrependUint32(5)
		Expect(b.ReadableBytes()).To(Equal(9))
		n, err := b.ReadUint32()
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(uint32(5)))
		Expect(b.RetrieveAllAsString()).To(Equal("hello"))
	})

	It("fails fixed width reads against too few readable bytes", func() {
		b := buffer.New()
		b.WriteUint8(1)
		_, err := b.ReadUint32()
		Expect(err).To(MatchError(buffer.ErrShortBuffer))
	})

	It("grows the backing array when compaction alone cannot free enough room", func() {
		b := buffer.NewSize(16)
		payload := make([]byte, 10)
		b.Write(payload)
		b.Write(payload)
		Expect(b.ReadableBytes()).To(Equal(20))
	})
})
