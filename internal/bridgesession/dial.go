package bridgesession

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/session"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultConnectTimeout bounds the socket.io handshake when the config sets none.
const DefaultConnectTimeout = 15 * time.Second

// Config describes how to reach the bridge.
type Config struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
	CallTimeout        time.Duration
}

// Factory dials a new bridge connection on every Acquire.
type Factory struct {
	Config Config
}

var _ session.Factory = (*Factory)(nil)

// NewFactory validates the bridge URL.
func NewFactory(cfg Config) (*Factory, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("bridge URL %q needs a scheme and a host", cfg.URL)
	}
	return &Factory{Config: cfg}, nil
}

// socketConn adapts a socket.io client to conn.
type socketConn struct {
	manager *socket.Manager
	io      *socket.Socket
}

func (c socketConn) Emit(event string, payload any) { c.io.Emit(event, payload) }

// Disconnect releases the socket. It is the manager's only socket, so the
// manager closes its engine with it and does not reconnect.
func (c socketConn) Disconnect() {
	c.manager.SetReconnection(false)
	c.io.Disconnect()
}

// notify reports the handshake outcome without blocking: only the first
// outcome is read, late connect or connect_error events are dropped.
func notify(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// Acquire implements session.Factory. Connection failures wrap
// session.ErrConnection.
func (f *Factory) Acquire(ctx context.Context) (session.Session, error) {
	cfg := f.Config
	logger := ctxlog.FromContext(ctx).With("url", cfg.URL, "namespace", cfg.Namespace)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))
	opts.SetReconnection(false)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	s := newSession(socketConn{manager: manager, io: io}, cfg.CallTimeout)
	io.On(types.EventName(eventResult), s.onResult)
	io.On(types.EventName(eventDisconnect), s.onDisconnect)

	connected := make(chan error, 1)
	io.Once(types.EventName(eventConnect), func(...any) {
		notify(connected, nil)
	})
	io.Once(types.EventName(eventConnectErr), func(args ...any) {
		err := errors.New("connect_error")
		if len(args) > 0 {
			if e, ok := args[0].(error); ok {
				err = e
			}
		}
		notify(connected, err)
	})

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	logger.Debug("Connecting to CAD bridge.")
	io.Connect()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("bridge connection failed: %w", errors.Join(session.ErrConnection, err))
		}
		logger.Info("Connected to CAD bridge.", "sid", io.Id())
		return s, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("waiting for bridge connection: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for bridge connection: %w", timeout, session.ErrConnection)
	}
}
