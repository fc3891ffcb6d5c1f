package duration_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libdur "github.com/nabbar/polysrv/duration"
)

func TestDuration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "duration suite")
}

var _ = Describe("Duration", func() {
	It("converts seconds round-trip", func() {
		d := libdur.FromSeconds(30)
		Expect(d.Seconds()).To(Equal(int64(30)))
		Expect(d.ToDuration()).To(Equal(30 * time.Second))
	})

	It("treats zero as disabled", func() {
		var d libdur.Duration
		Expect(d.IsZero()).To(BeTrue())
	})

	It("marshals and unmarshals JSON as seconds", func() {
		d := libdur.FromSeconds(120)
		b, err := d.MarshalJSON()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(Equal("120"))

		var out libdur.Duration
		Expect(out.UnmarshalJSON(b)).To(Succeed())
		Expect(out).To(Equal(d))
	})
})
