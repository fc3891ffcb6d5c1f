package socket_test

import (
	"errors"
	"net"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libsck "github.com/nabbar/polysrv/socket"
)

func TestSocket(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "socket suite")
}

var _ = Describe("ErrorFilter", func() {
	It("swallows net.ErrClosed", func() {
		Expect(libsck.ErrorFilter(net.ErrClosed)).To(BeNil())
	})

	It("swallows the closed-network-connection string", func() {
		err := errors.New("accept tcp [::]:8080: use of closed network connection")
		Expect(libsck.ErrorFilter(err)).To(BeNil())
	})

	It("passes through unrelated errors", func() {
		err := errors.New("boom")
		Expect(libsck.ErrorFilter(err)).To(Equal(err))
	})

	It("passes through nil", func() {
		Expect(libsck.ErrorFilter(nil)).To(BeNil())
	})
})

var _ = Describe("ConnState", func() {
	It("names every state", func() {
		Expect(libsck.Dial.String()).To(Equal("dial"))
		Expect(libsck.Close.String()).To(Equal("close"))
	})
})
