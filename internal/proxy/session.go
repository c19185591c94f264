package proxy

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/die-net/socks5d/internal/socks5"
)

// Session carries one client connection through negotiation, the command
// request and the relay. A Session owns its client conn for its whole life
// and its upstream conn once the CONNECT succeeds; Run closes both.
type Session struct {
	ID         uuid.UUID
	ClientAddr net.Addr

	cfg      Config
	log      zerolog.Logger
	client   net.Conn
	upstream net.Conn
	state    State
}

// NewSession returns a session for client in StateInitialize.
func NewSession(client net.Conn, cfg Config) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		ID:         uuid.New(),
		ClientAddr: client.RemoteAddr(),
		cfg:        cfg,
		client:     client,
		state:      StateInitialize,
	}
	s.log = cfg.Logger.With().
		Str("session", s.ID.String()).
		Stringer("client", s.ClientAddr).
		Logger()
	return s
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

// Run drives the session to completion and closes every conn it owns. The
// returned error describes why the session ended; nil means the relay
// finished with a clean EOF.
func (s *Session) Run(ctx context.Context) error {
	defer s.close()

	// Unblocks handshake reads when the server shuts down.
	stop := context.AfterFunc(ctx, func() {
		_ = s.client.Close()
	})
	defer stop()

	if err := s.negotiate(); err != nil {
		return fmt.Errorf("negotiate: %w", err)
	}
	if err := s.connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := s.relay(ctx); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	return nil
}

func (s *Session) close() {
	_ = s.client.Close()
	if s.upstream != nil {
		_ = s.upstream.Close()
	}
}

func (s *Session) transition(to State) error {
	if s.state.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, s.state)
	}
	if !s.state.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.log.Debug().Stringer("from", s.state).Stringer("to", to).Msg("state")
	s.state = to
	return nil
}

// fail moves the session to StateTimeout when err is a deadline expiry and
// returns err tagged accordingly.
func (s *Session) fail(err error) error {
	if !isTimeout(err) {
		return err
	}
	if terr := s.transition(StateTimeout); terr != nil {
		return errors.Join(err, terr)
	}
	return fmt.Errorf("%w: %w", ErrTimeout, err)
}

// refuse writes a final message to the client and moves to StateRefused.
func (s *Session) refuse(msg encoding.BinaryMarshaler, cause error) error {
	if err := s.write(msg); err != nil {
		return errors.Join(cause, s.fail(err))
	}
	if err := s.transition(StateRefused); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (s *Session) write(msg encoding.BinaryMarshaler) error {
	b, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := s.client.Write(b); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *Session) setNegotiationDeadline() {
	if s.cfg.NegotiationTimeout > 0 {
		_ = s.client.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}
}

// negotiate reads the client's method offer and accepts it only when no-auth
// is among the offered methods.
func (s *Session) negotiate() error {
	if s.state != StateInitialize {
		return fmt.Errorf("%w: negotiate in state %s", ErrInvalidTransition, s.state)
	}
	s.setNegotiationDeadline()

	req, err := socks5.ReadNegotiationRequestFrom(s.client)
	if err != nil {
		return s.fail(err)
	}
	if req.Version != socks5.Version {
		return fmt.Errorf("%w: %#x", socks5.ErrUnsupportedVersion, req.Version)
	}

	if !req.Has(socks5.MethodNoAuth) {
		reply := socks5.NegotiationReply{Version: socks5.Version, Method: socks5.MethodNoAcceptable}
		return s.refuse(reply, fmt.Errorf("%w: offered %v", ErrNoAcceptableMethod, req.Methods))
	}

	reply := socks5.NegotiationReply{Version: socks5.Version, Method: socks5.MethodNoAuth}
	if err := s.write(reply); err != nil {
		return s.fail(err)
	}
	return s.transition(StateAuthed)
}

// connect reads the command request and, for CONNECT, opens the upstream
// conn. Every other outcome replies with a failure status and refuses the
// session, so relay is only reachable with a live upstream.
func (s *Session) connect(ctx context.Context) error {
	if s.state != StateAuthed {
		return fmt.Errorf("%w: connect in state %s", ErrInvalidTransition, s.state)
	}
	s.setNegotiationDeadline()

	req, err := socks5.ReadRequestFrom(s.client)
	if err != nil {
		if errors.Is(err, socks5.ErrAddressType) {
			return s.refuse(socks5.NewFailureReply(socks5.StatusAddressTypeNotSupported), err)
		}
		return s.fail(err)
	}
	// The dial has its own timeout; the negotiation deadline must not cut
	// off the reply that follows it.
	_ = s.client.SetDeadline(time.Time{})

	s.log.Debug().Stringer("cmd", req.Command).Stringer("dest", req.Dest).Msg("request")

	if req.Command != socks5.CmdConnect {
		return s.refuse(socks5.NewFailureReply(socks5.StatusCommandNotSupported), fmt.Errorf("%w: %s", ErrCommandNotSupported, req.Command))
	}

	up, err := s.dial(ctx, req.Dest)
	if err != nil {
		reply := socks5.NewFailureReply(statusForDialError(err))
		err = fmt.Errorf("%w: %s: %w", ErrConnectFailed, req.Dest, err)
		if isTimeout(err) {
			if werr := s.write(reply); werr != nil {
				return s.fail(errors.Join(err, werr))
			}
			return s.fail(err)
		}
		return s.refuse(reply, err)
	}
	s.upstream = up

	bind, err := socks5.AddressFromNetAddr(up.LocalAddr())
	if err != nil {
		bind = socks5.IPv4Address(0, 0)
	}
	if err := s.transition(StateConnectedRemote); err != nil {
		return err
	}
	if err := s.write(socks5.NewReply(socks5.StatusSucceeded, bind)); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *Session) dial(ctx context.Context, dest socks5.Address) (net.Conn, error) {
	if s.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DialTimeout)
		defer cancel()
	}

	addr, err := dest.Resolve(ctx, s.cfg.Resolver)
	if err != nil {
		return nil, err
	}
	return s.cfg.Dialer.DialContext(ctx, "tcp", addr.String())
}

// relay copies bytes between client and upstream until either side ends.
func (s *Session) relay(ctx context.Context) error {
	if s.state != StateConnectedRemote || s.upstream == nil {
		return fmt.Errorf("%w: state %s", ErrNoUpstream, s.state)
	}
	client, upstream := s.client, s.upstream
	if s.cfg.IdleTimeout > 0 {
		client, upstream = withIdleTimeout(client, upstream, s.cfg.IdleTimeout)
	}

	err := CopyBidirectional(ctx, client, upstream)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return s.fail(err)
}
