package socks5

import (
	"fmt"
	"io"
)

// ClientDial runs the client side of a no-auth handshake followed by a
// CONNECT to dest over rw. It returns the server's reply; a non-success
// status is reported as an error alongside the reply.
func ClientDial(rw io.ReadWriter, dest Address) (Reply, error) {
	if err := ClientNegotiate(rw, MethodNoAuth); err != nil {
		return Reply{}, err
	}
	return ClientRequest(rw, CmdConnect, dest)
}

// ClientNegotiate offers methods and fails unless the server picks one of
// them.
func ClientNegotiate(rw io.ReadWriter, methods ...Method) error {
	b, err := NegotiationRequest{Version: Version, Methods: methods}.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := rw.Write(b); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	rep, err := ReadNegotiationReplyFrom(rw)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}
	if !(NegotiationRequest{Methods: methods}).Has(rep.Method) || rep.Method == MethodNoAcceptable {
		return fmt.Errorf("server selected %s", rep.Method)
	}
	return nil
}

// ClientRequest sends one command request and reads the reply.
func ClientRequest(rw io.ReadWriter, cmd Command, dest Address) (Reply, error) {
	b, err := Request{Version: Version, Command: cmd, Dest: dest}.MarshalBinary()
	if err != nil {
		return Reply{}, err
	}
	if _, err := rw.Write(b); err != nil {
		return Reply{}, fmt.Errorf("write request: %w", err)
	}

	rep, err := ReadReplyFrom(rw)
	if err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	if rep.Status != StatusSucceeded {
		return rep, fmt.Errorf("%s failed: %s", cmd, rep.Status)
	}
	return rep, nil
}
