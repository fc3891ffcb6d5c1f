package connection_test

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libconn "github.com/nabbar/polysrv/connection"
)

func TestConnection(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "connection suite")
}

func pipe() (net.Conn, net.Conn) {
	return net.Pipe()
}

var _ = Describe("Connection", func() {
	It("starts in Pending state with a unique identity", func() {
		c1, _ := pipe()
		c2, _ := pipe()

		a := libconn.New(c1, false, time.Now().Add(time.Second), nil, nil)
		b := libconn.New(c2, false, time.Now().Add(time.Second), nil, nil)

		Expect(a.State()).To(Equal(libconn.Pending))
		Expect(a.ID()).NotTo(Equal(b.ID()))
	})

	It("transitions monotonically through Handshaking to Connected", func() {
		client, server := pipe()
		defer client.Close()

		c := libconn.New(server, false, time.Now().Add(time.Second), nil, nil)
		c.MarkHandshaking()
		Expect(c.State()).To(Equal(libconn.Handshaking))

		c.MarkConnected()
		Expect(c.State()).To(Equal(libconn.Connected))
	})

	It("fires the disconnected notification exactly once under concurrent callers", func() {
		client, server := pipe()
		defer client.Close()

		var fired int
		var mu sync.Mutex

		c := libconn.New(server, false, time.Now().Add(time.Second), nil, func(*libconn.Connection) {
			mu.Lock()
			fired++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Disconnect()
			}()
		}
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		Expect(fired).To(Equal(1))
		Expect(c.IsClosed()).To(BeTrue())
	})

	It("refuses to send after Disconnect", func() {
		client, server := pipe()
		defer client.Close()

		c := libconn.New(server, false, time.Now().Add(time.Second), nil, nil)
		c.Disconnect()

		Expect(c.Send([]byte("hello"))).To(BeFalse())
	})

	It("serializes concurrent sends so each payload arrives contiguous", func() {
		client, server := pipe()
		c := libconn.New(server, false, time.Now().Add(time.Second), nil, nil)

		received := make(chan []byte, 1)
		go func() {
			buf := make([]byte, 10)
			n, _ := io.ReadFull(client, buf)
			received <- buf[:n]
		}()

		var wg sync.WaitGroup
		for _, p := range []string{"hello", "world"} {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				c.Send([]byte(p))
			}(p)
		}
		wg.Wait()

		Eventually(received).Should(Receive(Or(Equal([]byte("helloworld")), Equal([]byte("worldhello")))))
		client.Close()
	})

	It("KeepAlive clears pong-required and refreshes last-activity", func() {
		client, server := pipe()
		defer client.Close()

		c := libconn.New(server, false, time.Now().Add(time.Second), nil, nil)
		c.SetPongRequired(true)

		before := c.LastActivity()
		time.Sleep(time.Millisecond)
		c.KeepAlive()

		Expect(c.PongRequired()).To(BeFalse())
		Expect(c.LastActivity().After(before)).To(BeTrue())
	})

	It("carries the opaque listener back-reference", func() {
		client, server := pipe()
		defer client.Close()

		c := libconn.New(server, false, time.Now().Add(time.Second), "listener-1", nil)
		Expect(c.ListenerRef()).To(Equal("listener-1"))
	})
})
