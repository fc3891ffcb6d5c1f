package logger_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	liblog "github.com/nabbar/polysrv/logger"
)

func TestLogger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "logger suite")
}

var _ = Describe("Logger", func() {
	It("accepts field-less and field-bearing calls without panicking", func() {
		l := liblog.NewNop()
		Expect(func() {
			l.Info("listener started", liblog.Fields{"addr": ":8443"})
			l.WithField(liblog.Fields{"conn": "abc"}).Debug("peeked bytes", nil)
		}).NotTo(Panic())
	})

	It("rejects an unknown level", func() {
		l := liblog.NewNop()
		Expect(l.SetLevel("not-a-level")).To(HaveOccurred())
	})

	It("accepts a known level", func() {
		l := liblog.NewNop()
		Expect(l.SetLevel("debug")).To(Succeed())
	})
})
