package protocol_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libptc "github.com/nabbar/polysrv/network/protocol"
)

func TestProtocol(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "network/protocol suite")
}

var _ = Describe("Network", func() {
	It("parses known names case-insensitively", func() {
		n, err := libptc.Parse("TCP6")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(libptc.TCP6))
	})

	It("rejects unknown names", func() {
		_, err := libptc.Parse("sctp")
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("IsTCP gates the TCP family",
		func(n libptc.Network, want bool) {
			Expect(n.IsTCP()).To(Equal(want))
		},
		Entry("tcp", libptc.TCP, true),
		Entry("tcp4", libptc.TCP4, true),
		Entry("tcp6", libptc.TCP6, true),
		Entry("udp", libptc.UDP, false),
		Entry("unix", libptc.Unix, false),
	)
})
