// Package datagram is a thin wrapper over a UDP socket: non-blocking
// send, blocking receive of a single datagram up to the protocol MTU,
// and close. It is the Go counterpart of original_source/protocol/udp.go
// (makeUDPSocket / send / readIncomingPacket / serverListen), adapted
// to the net.Conn idioms the rest of this module's teacher uses.
package datagram

import (
	"fmt"
	"net"
	"time"

	"chatter/frame"
)

// Channel is a UDP socket bound either to an ephemeral local port
// (client side) or a specific port (server side).
type Channel struct {
	conn *net.UDPConn
}

// Open binds a UDP socket on localAddr. Pass "" (or ":0") for an
// ephemeral client-side port, or ":<port>" to bind all interfaces on a
// specific server port.
func Open(localAddr string) (*Channel, error) {
	addr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("datagram: resolve %q: %w", localAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("datagram: listen %q: %w", localAddr, err)
	}
	return &Channel{conn: conn}, nil
}

// LocalAddr returns the address the channel is bound to.
func (c *Channel) LocalAddr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}

// SendTo writes b to the given destination. UDP sends of the sizes
// used by this protocol (≤ MTU) are never partial.
func (c *Channel) SendTo(b []byte, dst *net.UDPAddr) error {
	_, err := c.conn.WriteToUDP(b, dst)
	return err
}

// Recv blocks until the next datagram arrives, returning its bytes (up
// to frame.MTU) and the sender's address. Each call delivers exactly
// one datagram — the OS never coalesces UDP datagrams.
func (c *Channel) Recv() ([]byte, *net.UDPAddr, error) {
	buf := make([]byte, frame.MTU)
	n, src, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	return buf[:n], src, nil
}

// SetReadDeadline bounds the next Recv call, letting a caller poll a
// shutdown flag between blocking reads instead of blocking forever.
func (c *Channel) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close releases the underlying socket.
func (c *Channel) Close() error {
	return c.conn.Close()
}
