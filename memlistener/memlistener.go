// Package memlistener provides named in-memory listeners so servers can be
// exercised without opening sockets.
package memlistener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc/test/bufconn"
)

// Network is the network name accepted by Listen and Dial.
const Network = "mem"

var (
	listeners    = make(map[string]*memlistener)
	listenersMux sync.Mutex

	errMissingAddress = errors.New("missing address")
)

const (
	defaultBufferSize = 256 * 1024
)

type addr string

func (addr) Network() string  { return Network }
func (a addr) String() string { return string(a) }

type errListenerAlreadyExist struct {
	addr string
}

func (e errListenerAlreadyExist) Error() string {
	return fmt.Sprintf("listener with address %s already exist", e.addr)
}

type errListenerNotFound struct {
	addr string
}

func (e errListenerNotFound) Error() string {
	return fmt.Sprintf("listener with address %s not found", e.addr)
}

// Listen registers an in-memory listener under address.
func Listen(address string) (net.Listener, error) {
	return ListenSize(address, defaultBufferSize)
}

// ListenSize is Listen with a custom per-connection buffer size.
func ListenSize(address string, sz int) (net.Listener, error) {
	if address == "" {
		return nil, &net.OpError{Op: "listen", Net: Network, Addr: addr(address), Err: errMissingAddress}
	}

	listenersMux.Lock()
	defer listenersMux.Unlock()

	if _, exist := listeners[address]; exist {
		return nil, &net.OpError{Op: "listen", Net: Network, Addr: addr(address), Err: errListenerAlreadyExist{address}}
	}

	ln := &memlistener{
		Listener: bufconn.Listen(sz),
		addr:     addr(address),
	}
	listeners[address] = ln

	return ln, nil
}

// DialContext connects to the listener registered under address. host:port
// addresses are looked up by their host part, so the function can be used as
// a Dialer.NetDialContext for URLs like ws://name/path.
func DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if address == "" {
		return nil, &net.OpError{Op: "dial", Net: network, Addr: addr(address), Err: errMissingAddress}
	}

	name := address
	if host, _, err := net.SplitHostPort(address); err == nil {
		name = host
	}

	listenersMux.Lock()
	ln, exist := listeners[name]
	listenersMux.Unlock()
	if !exist {
		return nil, &net.OpError{Op: "dial", Net: network, Addr: addr(address), Err: errListenerNotFound{name}}
	}

	return ln.DialContext(ctx)
}

func removeListener(address string) {
	listenersMux.Lock()
	defer listenersMux.Unlock()

	delete(listeners, address)
}

type memlistener struct {
	*bufconn.Listener
	addr addr
}

func (m *memlistener) Addr() net.Addr {
	return m.addr
}

func (m *memlistener) Close() error {
	removeListener(string(m.addr))
	return m.Listener.Close()
}
