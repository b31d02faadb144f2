package network

import (
	"net"
	"testing"

	"github.com/harveybc/doin-core/crypto"
)

func TestPeerSendReceiveRoundtrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := NewPeer("peer-client", "client-addr", clientConn)
	server := NewPeer("peer-server", "server-addr", serverConn)

	_, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	env := NewEnvelope(MsgChainStatus, pub, []byte("status-payload"))

	done := make(chan error, 1)
	go func() { done <- client.Send(env) }()

	got, err := server.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Type != MsgChainStatus || string(got.Payload) != "status-payload" {
		t.Errorf("received envelope mismatch: %+v", got)
	}
}

func TestPeerSendAfterCloseFails(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	p := NewPeer("peer-1", "addr", clientConn)
	p.Close()

	_, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Send(NewEnvelope(MsgVote, pub, nil)); err == nil {
		t.Error("sending on a closed peer should fail")
	}
}
