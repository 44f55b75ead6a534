package channel

import amino "github.com/tendermint/go-amino"

var cdc = amino.NewCodec()

// PacketEnvelope is what actually crosses the wire as an ICPAction's
// ActionBytes: the sender's view of the packet (its seq and expiration)
// wrapping the opaque application payload the host dispatches. The host
// chain's own action codec remains outside this package's concern —
// PacketEnvelope is this relay's own framing around that opaque payload,
// not a reimplementation of it.
type PacketEnvelope struct {
	Seq        uint64
	Expiration uint64
	Payload    []byte
}

// ReceiptEnvelope is the receipt-direction counterpart, carrying the
// distinct Expired flag called for by the wire schema's open question: a
// receipt for an expired packet carries no execution result.
type ReceiptEnvelope struct {
	Seq       uint64
	PacketSeq uint64
	Expired   bool
}

func EncodePacketEnvelope(e PacketEnvelope) ([]byte, error) {
	return cdc.MarshalBinaryBare(e)
}

func DecodePacketEnvelope(bz []byte) (PacketEnvelope, error) {
	var e PacketEnvelope
	err := cdc.UnmarshalBinaryBare(bz, &e)
	return e, err
}

func EncodeReceiptEnvelope(e ReceiptEnvelope) ([]byte, error) {
	return cdc.MarshalBinaryBare(e)
}

func DecodeReceiptEnvelope(bz []byte) (ReceiptEnvelope, error) {
	var e ReceiptEnvelope
	err := cdc.UnmarshalBinaryBare(bz, &e)
	return e, err
}
