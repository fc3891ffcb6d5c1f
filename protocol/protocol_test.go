package protocol_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libproto "github.com/nabbar/polysrv/protocol"
)

func TestProtocol(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "protocol suite")
}

type stubProtocol struct {
	name   string
	accept func(peeked []byte) bool
}

func (s *stubProtocol) Name() string { return s.name }

func (s *stubProtocol) AttemptHandshake(c libproto.Conn, peeked []byte) libproto.HandshakeResult {
	if s.accept != nil && s.accept(peeked) {
		return libproto.HandshakeResult{Accepted: true, Replay: peeked}
	}
	return libproto.HandshakeResult{}
}

func (s *stubProtocol) SwitchTo(c libproto.Conn, data []byte) libproto.HandshakeResult {
	return libproto.HandshakeResult{Accepted: true}
}

func (s *stubProtocol) HandleConnection(c libproto.Conn, r libproto.HandshakeResult) {}

var _ = Describe("Registry", func() {
	It("appends a new protocol to the tail", func() {
		r := libproto.NewRegistry()
		r.Add(&stubProtocol{name: "A"})
		r.Add(&stubProtocol{name: "B"})

		names := []string{}
		for _, p := range r.Snapshot() {
			names = append(names, p.Name())
		}

		Expect(names).To(Equal([]string{"A", "B"}))
	})

	It("replaces a protocol with the same case-insensitive name in place", func() {
		r := libproto.NewRegistry()
		r.Add(&stubProtocol{name: "Echo"})
		r.Add(&stubProtocol{name: "Line"})

		replacement := &stubProtocol{name: "echo"}
		r.Add(replacement)

		snap := r.Snapshot()
		Expect(snap).To(HaveLen(2))
		Expect(snap[0]).To(BeIdenticalTo(replacement))
		Expect(snap[1].Name()).To(Equal("Line"))
	})

	It("Find matches case-insensitively", func() {
		r := libproto.NewRegistry()
		r.Add(&stubProtocol{name: "Echo"})

		p, ok := r.Find("ECHO")
		Expect(ok).To(BeTrue())
		Expect(p.Name()).To(Equal("Echo"))
	})

	It("Find reports false for an unknown name", func() {
		r := libproto.NewRegistry()
		_, ok := r.Find("missing")
		Expect(ok).To(BeFalse())
	})

	It("mutating Add does not affect a previously taken snapshot", func() {
		r := libproto.NewRegistry()
		r.Add(&stubProtocol{name: "A"})

		snap := r.Snapshot()
		r.Add(&stubProtocol{name: "B"})

		Expect(snap).To(HaveLen(1))
		Expect(r.Snapshot()).To(HaveLen(2))
	})
})
