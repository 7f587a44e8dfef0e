// Package transport is the wire adapter: raw SIP datagrams over UDP.
// Retransmission is the queue engine's job, not ours.
package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// ErrTimeout is returned by GetNextDatagram when no datagram arrived
// within the deadline.
var ErrTimeout = errors.New("transport: receive timeout")

// Conn is the datagram surface the engine and reader use. Addresses are
// printable "host:port" strings throughout, the same form the save file
// records.
type Conn interface {
	// GetNextDatagram blocks up to timeout for one datagram, filling
	// buf and returning the byte count and the source address.
	GetNextDatagram(buf []byte, timeout time.Duration) (int, string, error)
	// SendDatagram sends b to dest ("host:port").
	SendDatagram(b []byte, dest string) error
	Close() error
}

// UDP is the production Conn on a single bound socket.
type UDP struct {
	conn *net.UDPConn
}

// Listen binds the SIP socket.
func Listen(bind string) (*UDP, error) {
	addr, err := net.ResolveUDPAddr("udp", bind)
	if err != nil {
		return nil, fmt.Errorf("resolve bind address %s: %w", bind, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", bind, err)
	}
	return &UDP{conn: conn}, nil
}

// LocalAddr returns the bound address as "host:port".
func (u *UDP) LocalAddr() string {
	return u.conn.LocalAddr().String()
}

func (u *UDP) GetNextDatagram(buf []byte, timeout time.Duration) (int, string, error) {
	if err := u.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, "", fmt.Errorf("set read deadline: %w", err)
	}
	n, src, err := u.conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, "", ErrTimeout
		}
		return 0, "", fmt.Errorf("receive datagram: %w", err)
	}
	return n, src.String(), nil
}

func (u *UDP) SendDatagram(b []byte, dest string) error {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dest, err)
	}
	if _, err := u.conn.WriteToUDP(b, addr); err != nil {
		return fmt.Errorf("send datagram to %s: %w", dest, err)
	}
	return nil
}

func (u *UDP) Close() error {
	return u.conn.Close()
}
