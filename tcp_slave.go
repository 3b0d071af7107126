package modbus

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/TheCount/go-multilocker/multilocker"
)

// TCP Default read & write timeout
const (
	TCPDefaultReadTimeout  = 60 * time.Second
	TCPDefaultWriteTimeout = 1 * time.Second
)

// ErrServerStarted Serve called on a slave that is already serving.
var ErrServerStarted = errors.New("modbus: tcp slave already serving")

// TCPSlave modbus tcp server, every connected master gets its own session.
// Requests are answered whatever their unit id.
type TCPSlave struct {
	serverMu sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc

	mastersMu sync.Mutex
	masters   map[string]net.Conn

	wg           sync.WaitGroup
	slave        *Slave
	readTimeout  time.Duration
	writeTimeout time.Duration
	clogs
}

// NewTCPSlave 创建一个tcp slave, read timeout defaults to 60s and write
// timeout to 1s.
func NewTCPSlave(slave *Slave, opts ...Option) *TCPSlave {
	o := newOptions(opts...)
	sf := &TCPSlave{
		masters: make(map[string]net.Conn),
		slave:   slave,
		clogs:   newClogWithPrefix("modbusTCPSlave =>"),
	}
	sf.readTimeout, sf.writeTimeout = o.timeouts(TCPDefaultReadTimeout, TCPDefaultWriteTimeout)
	o.setupLogger(&sf.clogs)
	return sf
}

// ListenAndServe listens on the TCP address addr and serves it, see Serve.
func (sf *TCPSlave) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return sf.Serve(ctx, ln)
}

// Serve accepts masters on ln until ctx is done or Close is called, both
// return nil. Serve closes ln.
func (sf *TCPSlave) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	sf.serverMu.Lock()
	if sf.listener != nil {
		sf.serverMu.Unlock()
		cancel()
		return ErrServerStarted
	}
	sf.listener = ln
	sf.cancel = cancel
	sf.wg.Add(1)
	sf.serverMu.Unlock()

	defer func() {
		sf.shutdown()
		sf.wg.Done()
		sf.Debugf("server stop")
	}()
	go func() {
		<-ctx.Done()
		sf.shutdown()
	}()

	sf.Debugf("server running on %v", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		sf.wg.Add(1)
		go func() {
			defer sf.wg.Done()
			sf.running(ctx, conn)
		}()
	}
}

// Addr the listening address, nil when not serving.
func (sf *TCPSlave) Addr() net.Addr {
	sf.serverMu.Lock()
	defer sf.serverMu.Unlock()
	if sf.listener == nil {
		return nil
	}
	return sf.listener.Addr()
}

// Masters remote addresses of the connected masters, sorted.
func (sf *TCPSlave) Masters() []string {
	sf.mastersMu.Lock()
	addrs := make([]string, 0, len(sf.masters))
	for addr := range sf.masters {
		addrs = append(addrs, addr)
	}
	sf.mastersMu.Unlock()
	sort.Strings(addrs)
	return addrs
}

// shutdown closes the listener and every master connection, safe to call
// more than once.
func (sf *TCPSlave) shutdown() {
	lk := multilocker.New(&sf.serverMu, &sf.mastersMu)
	lk.Lock()
	defer lk.Unlock()
	if sf.listener != nil {
		sf.cancel()
		_ = sf.listener.Close()
		sf.listener = nil
	}
	for _, conn := range sf.masters {
		_ = conn.Close()
	}
}

// Close stops serving and waits for every session to end.
func (sf *TCPSlave) Close() error {
	sf.shutdown()
	sf.wg.Wait()
	return nil
}

func (sf *TCPSlave) addMaster(conn net.Conn) {
	sf.mastersMu.Lock()
	sf.masters[conn.RemoteAddr().String()] = conn
	sf.mastersMu.Unlock()
}

func (sf *TCPSlave) removeMaster(conn net.Conn) {
	sf.mastersMu.Lock()
	delete(sf.masters, conn.RemoteAddr().String())
	sf.mastersMu.Unlock()
}

// running serves one master until it disconnects or ctx is done.
func (sf *TCPSlave) running(ctx context.Context, conn net.Conn) {
	sf.addMaster(conn)
	sf.Debugf("client(%v) -> server(%v) connected", conn.RemoteAddr(), conn.LocalAddr())

	var err error
	defer func() {
		sf.removeMaster(conn)
		_ = conn.Close()
		sf.Debugf("client(%v) -> server(%v) disconnected, cause by %v", conn.RemoteAddr(), conn.LocalAddr(), err)
	}()

	stream := NewNetStream(conn, sf.readTimeout, sf.writeTimeout)
	for {
		if err = ctx.Err(); err != nil {
			return
		}
		var head protocolTCPHeader
		var frame []byte
		head, frame, err = readTCPFrame(stream)
		if err != nil {
			if isFramingError(err) || IsTimeout(err) {
				sf.Debugf("client(%v) drop input, %v", conn.RemoteAddr(), err)
				if err = stream.DiscardInBuffer(); err != nil {
					return
				}
				continue
			}
			return
		}
		if err = sf.frameHandler(stream, head, frame); err != nil {
			if IsTimeout(err) {
				continue
			}
			return
		}
	}
}

// frameHandler answers one unit id + PDU frame.
func (sf *TCPSlave) frameHandler(stream StreamResource, head protocolTCPHeader, frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			sf.Errorf("panic happen, %v", r)
		}
	}()

	sf.Debugf("RX Raw[% x] transaction '%v'", frame, head.transactionID)
	req, err := DecodeRequest(frame)
	if err != nil {
		sf.Debugf("drop request, %v", err)
		return nil
	}
	rsp := sf.slave.ApplyRequest(req)

	buf := tcpPool.get()
	defer tcpPool.put(buf)
	adu, err := encodeTCPFrame(buf.adu, head.transactionID, rsp)
	if err != nil {
		sf.Errorf("encode response, %v", err)
		return nil
	}
	sf.Debugf("TX Raw[% x]", adu)
	_, err = stream.Write(adu)
	return err
}
