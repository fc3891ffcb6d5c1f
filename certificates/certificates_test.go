package certificates_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libcrt "github.com/nabbar/polysrv/certificates"
)

func TestCertificates(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "certificates suite")
}

func writeSelfSigned(dir string) (certPath, keyPath string) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).NotTo(HaveOccurred())

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	Expect(err).NotTo(HaveOccurred())

	certPath = dir + "/cert.pem"
	keyPath = dir + "/key.pem"

	certOut, err := os.Create(certPath)
	Expect(err).NotTo(HaveOccurred())
	Expect(pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der})).To(Succeed())
	Expect(certOut.Close()).To(Succeed())

	keyBytes, err := x509.MarshalECPrivateKey(key)
	Expect(err).NotTo(HaveOccurred())

	keyOut, err := os.Create(keyPath)
	Expect(err).NotTo(HaveOccurred())
	Expect(pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})).To(Succeed())
	Expect(keyOut.Close()).To(Succeed())

	return
}

var _ = Describe("TLSConfig", func() {
	It("builds a *tls.Config from a loaded certificate pair", func() {
		dir := GinkgoT().TempDir()
		certPath, keyPath := writeSelfSigned(dir)

		tc, err := libcrt.New(libcrt.Config{
			CertFile:   certPath,
			KeyFile:    keyPath,
			MinVersion: libcrt.VersionTLS12,
		})
		Expect(err).NotTo(HaveOccurred())

		cfg, err := tc.TLS("localhost")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.MinVersion).To(Equal(uint16(tls.VersionTLS12)))
		Expect(cfg.Certificates).To(HaveLen(1))
	})

	It("rejects a config missing both cert and key", func() {
		_, err := libcrt.New(libcrt.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("sets InsecureSkipVerify when bypass validation is requested", func() {
		dir := GinkgoT().TempDir()
		certPath, keyPath := writeSelfSigned(dir)

		tc, err := libcrt.New(libcrt.Config{
			CertFile:         certPath,
			KeyFile:          keyPath,
			BypassValidation: true,
		})
		Expect(err).NotTo(HaveOccurred())

		cfg, err := tc.TLS("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.InsecureSkipVerify).To(BeTrue())
	})
})
