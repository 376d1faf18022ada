package rpc_test

import (
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	libbuf "github.com/loopwire/reactor/buffer"
	libconn "github.com/loopwire/reactor/connection"
	"github.com/loopwire/reactor/rpc"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRpc(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rpc Suite")
}

var _ = Describe("Codec", func() {
	It("round-trips a framed protobuf message through a Buffer", func() {
		received := make(chan string, 1)
		codec := rpc.NewCodec(
			func() proto.Message { return &wrapperspb.StringValue{} },
			func(_ *libconn.TcpConnection, msg proto.Message) {
				received <- msg.(*wrapperspb.StringValue).GetValue()
			},
			nil,
		)

		payload, err := proto.Marshal(wrapperspb.String("hello rpc"))
		Expect(err).ToNot(HaveOccurred())

		frame := libbuf.New()
		frame.Write(payload)
		frame.PrependUint32(uint32(len(payload)))

		in := libbuf.New()
		in.Write(frame.Peek())

		codec.HandleMessage(nil, in, time.Now())
		Expect(received).To(Receive(Equal("hello rpc")))
		Expect(in.ReadableBytes()).To(Equal(0))
	})

	It("leaves a partial frame buffered until the rest arrives", func() {
		calls := 0
		codec := rpc.NewCodec(
			func() proto.Message { return &wrapperspb.StringValue{} },
			func(_ *libconn.TcpConnection, _ proto.Message) { calls++ },
			nil,
		)

		payload, err := proto.Marshal(wrapperspb.String("split"))
		Expect(err).ToNot(HaveOccurred())

		frame := libbuf.New()
		frame.Write(payload)
		frame.PrependUint32(uint32(len(payload)))
		full := append([]byte(nil), frame.Peek()...)

		in := libbuf.New()
		in.Write(full[:len(full)-2])
		codec.HandleMessage(nil, in, time.Now())
		Expect(calls).To(Equal(0))

		in.Write(full[len(full)-2:])
		codec.HandleMessage(nil, in, time.Now())
		Expect(calls).To(Equal(1))
	})
})
