package network

import (
	"testing"

	"github.com/harveybc/doin-core/crypto"
)

func TestEnvelopeEncodeDecodeRoundtrip(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	env := NewEnvelope(MsgVote, pub, []byte("payload-bytes"))
	env.Sign(priv)

	decoded, err := DecodeEnvelope(env.Encode())
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if decoded.Type != MsgVote || decoded.TTL != DefaultTTL || string(decoded.Payload) != "payload-bytes" {
		t.Errorf("roundtrip mismatch: %+v", decoded)
	}
	if err := decoded.Verify(); err != nil {
		t.Errorf("decoded envelope should verify: %v", err)
	}
}

func TestEnvelopeVerifyRejectsTamperedPayload(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	env := NewEnvelope(MsgBlockAnnouncement, pub, []byte("original"))
	env.Sign(priv)
	env.Payload = []byte("tampered!")

	if err := env.Verify(); err == nil {
		t.Error("a tampered payload should fail signature verification")
	}
}

func TestDecrementedLowersTTLWithoutMutatingOriginal(t *testing.T) {
	_, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	env := NewEnvelope(MsgChainStatus, pub, nil)
	next := env.Decremented()
	if next.TTL != env.TTL-1 {
		t.Errorf("Decremented should reduce TTL by one: got %d want %d", next.TTL, env.TTL-1)
	}
	if env.TTL != DefaultTTL {
		t.Error("Decremented must not mutate the receiver")
	}
}

func TestDecodeEnvelopeRejectsTruncatedData(t *testing.T) {
	if _, err := DecodeEnvelope([]byte{1, 2, 3}); err == nil {
		t.Error("a truncated buffer should fail to decode")
	}
}

func TestMsgTypeStringNamesEveryVariant(t *testing.T) {
	cases := map[MsgType]string{
		MsgOptimaeCommit:     "OPTIMAE_COMMIT",
		MsgOptimaeReveal:     "OPTIMAE_REVEAL",
		MsgVote:              "VOTE",
		MsgBlockAnnouncement: "BLOCK_ANNOUNCEMENT",
		MsgChainStatus:       "CHAIN_STATUS",
		MsgBlockRequest:      "BLOCK_REQUEST",
		MsgBlockResponse:     "BLOCK_RESPONSE",
		MsgTaskCreated:       "TASK_CREATED",
		MsgTaskClaimed:       "TASK_CLAIMED",
		MsgTaskCompleted:     "TASK_COMPLETED",
		MsgPeerDiscovery:     "PEER_DISCOVERY",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("MsgType(%d).String(): got %q want %q", typ, got, want)
		}
	}
}
