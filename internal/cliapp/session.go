package cliapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/beamline/beamline/internal/config"
	"github.com/beamline/beamline/internal/peerconn"
	"github.com/beamline/beamline/internal/rendezvous"
	"github.com/beamline/beamline/internal/transfer"
	"github.com/beamline/beamline/internal/ui"
)

// ConnectionContext bundles the signaling client and its typed message
// handler for the lifetime of one room membership.
type ConnectionContext struct {
	Client  *rendezvous.Client
	Handler *rendezvous.Handler
	Config  *config.Config
}

// NewConnectionContext connects to the signaling server and starts
// dispatching its messages onto the handler's typed channels.
func NewConnectionContext(cfg *config.Config) (*ConnectionContext, error) {
	client := rendezvous.NewClient(cfg.SignalURL)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to signaling server: %w", err)
	}

	handler := rendezvous.NewHandler(client)
	go handler.Start()

	return &ConnectionContext{Client: client, Handler: handler, Config: cfg}, nil
}

func (c *ConnectionContext) Close() {
	// Client must close first: it closes the Incoming channel that
	// Handler.Start range-loops over, which is what lets Handler.Close
	// safely close its own output channels without racing a send.
	if c.Client != nil {
		c.Client.Close()
	}
	if c.Handler != nil {
		c.Handler.Close()
	}
}

// LoadConfig resolves configuration and rejects a forced-relay request
// that has no TURN server to relay through.
func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.ForceRelay && cfg.TURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without a TURN server configured")
	}
	return cfg, nil
}

// establishPeerSession drives the signaling-relayed WebRTC handshake to
// an open data channel and wraps it for the transfer engine. It blocks
// until the channel opens, the peer leaves, or a handshake error
// occurs.
func establishPeerSession(ctx context.Context, cfg *config.Config, handler *rendezvous.Handler, isInitiator bool) (*peerconn.Session, *transfer.Controller, error) {
	session := peerconn.NewSession(cfg, handler, isInitiator)
	go session.Run(ctx)

	// The caller has already seen peer-joined by the time an initiator
	// gets here, so the offer must be kicked off explicitly rather than
	// waiting for a signal that was consumed upstream.
	if err := session.Begin(); err != nil {
		session.Reset()
		return nil, nil, fmt.Errorf("begin handshake: %w", err)
	}

	select {
	case dc := <-session.ChannelOpen:
		controller := transfer.NewController(transfer.WrapDataChannel(dc), isInitiator)
		if err := controller.Start(); err != nil {
			return nil, nil, fmt.Errorf("start transfer engine: %w", err)
		}
		return session, controller, nil
	case err := <-session.Errors:
		return nil, nil, err
	case <-session.Left:
		return nil, nil, errors.New("peer left before the data channel opened")
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// watchSessionHealth is the sole consumer of the controller's Errors
// channel: it reports non-fatal errors as warnings and invokes onFatal
// exactly once when the session can no longer continue — the peer
// disconnects, the channel closes, or the transfer engine reports a key
// import failure (decryption can never succeed for the remainder of the
// session once that happens, so the handshake layer tears the peer
// connection down rather than leaving it half-usable).
func watchSessionHealth(session *peerconn.Session, controller *transfer.Controller, onFatal func(error)) {
	go func() {
		for {
			select {
			case err, ok := <-controller.Errors:
				if !ok {
					return
				}
				switch {
				case errors.Is(err, transfer.ErrKeyImport):
					session.Reset()
					onFatal(err)
					return
				case errors.Is(err, transfer.ErrPeerDisconnected), errors.Is(err, transfer.ErrChannelClosed):
					onFatal(err)
					return
				default:
					ui.PrintWarning(err.Error())
				}

			case <-session.Left:
				onFatal(errors.New("peer disconnected"))
				return
			}
		}
	}()
}
