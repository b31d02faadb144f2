package network

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/harveybc/doin-core/crypto"
)

// MsgType is one of the eleven typed flood/sync messages in the closed
// variant set spec.md §4.11 defines.
type MsgType uint8

const (
	MsgOptimaeCommit MsgType = iota + 1
	MsgOptimaeReveal
	MsgVote
	MsgBlockAnnouncement
	MsgChainStatus
	MsgBlockRequest
	MsgBlockResponse
	MsgTaskCreated
	MsgTaskClaimed
	MsgTaskCompleted
	MsgPeerDiscovery
)

func (t MsgType) String() string {
	switch t {
	case MsgOptimaeCommit:
		return "OPTIMAE_COMMIT"
	case MsgOptimaeReveal:
		return "OPTIMAE_REVEAL"
	case MsgVote:
		return "VOTE"
	case MsgBlockAnnouncement:
		return "BLOCK_ANNOUNCEMENT"
	case MsgChainStatus:
		return "CHAIN_STATUS"
	case MsgBlockRequest:
		return "BLOCK_REQUEST"
	case MsgBlockResponse:
		return "BLOCK_RESPONSE"
	case MsgTaskCreated:
		return "TASK_CREATED"
	case MsgTaskClaimed:
		return "TASK_CLAIMED"
	case MsgTaskCompleted:
		return "TASK_COMPLETED"
	case MsgPeerDiscovery:
		return "PEER_DISCOVERY"
	default:
		return fmt.Sprintf("MsgType(%d)", uint8(t))
	}
}

const (
	// ProtocolVersion is the current wire format version.
	ProtocolVersion uint8 = 1
	// DefaultTTL is the hop budget assigned to a freshly originated message.
	DefaultTTL uint8 = 5

	originLen = 32
	sigLen    = 64
	// envelopeFixedLen is version(1) + type(1) + message_id(16) + ttl(1) +
	// origin(32) + payload_len(4), everything before the variable payload
	// and trailing signature.
	envelopeFixedLen = 1 + 1 + 16 + 1 + originLen + 4
)

// Envelope is the flood-message wire format: version ∥ type ∥ message_id ∥
// ttl ∥ origin ∥ payload_len ∥ payload ∥ sig. Grounded on the teacher's
// network/peer.go length-prefixed-JSON Message, generalized into a typed
// binary envelope per spec.md §4.11 — JSON's self-describing framing has
// no room for a fixed-width signature or TTL hop-count the teacher's
// protocol never needed.
type Envelope struct {
	Version   uint8
	Type      MsgType
	MessageID uuid.UUID
	TTL       uint8
	Origin    [originLen]byte // ed25519 public key of the originating peer
	Payload   []byte
	Sig       [sigLen]byte
}

// NewEnvelope builds a fresh, unsigned envelope for a locally originated
// message with a new random message_id and DefaultTTL.
func NewEnvelope(typ MsgType, origin crypto.PublicKey, payload []byte) Envelope {
	var originBytes [originLen]byte
	copy(originBytes[:], origin)
	return Envelope{
		Version:   ProtocolVersion,
		Type:      typ,
		MessageID: uuid.New(),
		TTL:       DefaultTTL,
		Origin:    originBytes,
		Payload:   payload,
	}
}

// signingBody returns every envelope field except Sig, in wire order.
func (e *Envelope) signingBody() []byte {
	var buf bytes.Buffer
	buf.WriteByte(e.Version)
	buf.WriteByte(byte(e.Type))
	idBytes, _ := e.MessageID.MarshalBinary()
	buf.Write(idBytes)
	buf.WriteByte(e.TTL)
	buf.Write(e.Origin[:])
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e.Payload)))
	buf.Write(lenBuf[:])
	buf.Write(e.Payload)
	return buf.Bytes()
}

// Sign signs the envelope with the originating peer's private key.
func (e *Envelope) Sign(priv crypto.PrivateKey) {
	sigHex := crypto.Sign(priv, e.signingBody())
	raw, err := hex.DecodeString(sigHex)
	if err == nil && len(raw) == sigLen {
		copy(e.Sig[:], raw)
	}
}

// Verify checks the envelope's signature against its declared origin.
func (e *Envelope) Verify() error {
	pub := crypto.PublicKey(e.Origin[:])
	return crypto.Verify(pub, e.signingBody(), hex.EncodeToString(e.Sig[:]))
}

// Encode serializes the envelope to its wire form.
func (e *Envelope) Encode() []byte {
	buf := make([]byte, 0, envelopeFixedLen+len(e.Payload)+sigLen)
	buf = append(buf, e.Version, byte(e.Type))
	idBytes, _ := e.MessageID.MarshalBinary()
	buf = append(buf, idBytes...)
	buf = append(buf, e.TTL)
	buf = append(buf, e.Origin[:]...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e.Payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, e.Payload...)
	buf = append(buf, e.Sig[:]...)
	return buf
}

// DecodeEnvelope parses the wire form produced by Encode.
func DecodeEnvelope(data []byte) (Envelope, error) {
	if len(data) < envelopeFixedLen+sigLen {
		return Envelope{}, fmt.Errorf("envelope too short: %d bytes", len(data))
	}
	var e Envelope
	e.Version = data[0]
	e.Type = MsgType(data[1])
	if err := e.MessageID.UnmarshalBinary(data[2:18]); err != nil {
		return Envelope{}, fmt.Errorf("parse message_id: %w", err)
	}
	e.TTL = data[18]
	copy(e.Origin[:], data[19:19+originLen])
	payloadLenOffset := 19 + originLen
	payloadLen := binary.BigEndian.Uint32(data[payloadLenOffset : payloadLenOffset+4])
	payloadStart := payloadLenOffset + 4
	if uint32(len(data)) < uint32(payloadStart)+payloadLen+sigLen {
		return Envelope{}, fmt.Errorf("envelope payload_len %d exceeds buffer", payloadLen)
	}
	e.Payload = append([]byte(nil), data[payloadStart:payloadStart+int(payloadLen)]...)
	copy(e.Sig[:], data[payloadStart+int(payloadLen):payloadStart+int(payloadLen)+sigLen])
	return e, nil
}

// Decremented returns a copy of e with TTL reduced by one, for forwarding.
func (e Envelope) Decremented() Envelope {
	e.TTL--
	return e
}
