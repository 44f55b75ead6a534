// Package coordinator is the relay node's session registry and message
// router: it accepts Sessions from the listener and dialer, deduplicates
// by peer id, and translates each decoded wire message into the matching
// channel.Contract call. It plays the role the original relay's
// subscriber/coordinator loop played, adapted to the structures here: a
// single Coordinator owns one Contract (one channel, one peer), fanned out
// over however many redundant Sessions happen to be connected to that peer
// at once.
package coordinator

import "fmt"

// Disposition describes one notable thing a session did, in the same
// shape behavior.PeerBehavior used for consensus gossip: a peer id plus a
// typed reason. The coordinator keeps one bounded log of the most recent
// 256 of these across all peers, plus a count per peer, for diagnostics; unlike the original, there is no reputation scoring here,
// since an ICP relay session carries no proof-of-stake weight to adjust.
type Disposition struct {
	PeerID string
	Reason interface{}
}

type badPayload struct {
	explanation string
}

// BadPayload returns a Disposition recording a session close caused by an
// undecodable or schema-invalid frame.
func BadPayload(peerID, explanation string) Disposition {
	return Disposition{PeerID: peerID, Reason: badPayload{explanation}}
}

type redundantPeer struct {
	explanation string
}

// RedundantPeer returns a Disposition recording that an older session was
// closed because a newer session for the same peer id completed its hello.
func RedundantPeer(peerID, explanation string) Disposition {
	return Disposition{PeerID: peerID, Reason: redundantPeer{explanation}}
}

type channelOpened struct {
	explanation string
}

// ChannelOpened returns a Disposition recording a successful openchannel
// triggered by an inbound ChannelSeed.
func ChannelOpened(peerID, explanation string) Disposition {
	return Disposition{PeerID: peerID, Reason: channelOpened{explanation}}
}

type rejectedMessage struct {
	explanation string
}

// RejectedMessage returns a Disposition recording a well-formed frame that
// the channel contract nonetheless refused (bad proof, seq gap, rate
// limit, and so on).
func RejectedMessage(peerID, explanation string) Disposition {
	return Disposition{PeerID: peerID, Reason: rejectedMessage{explanation}}
}

func (d Disposition) String() string {
	return fmt.Sprintf("peer=%s reason=%v", d.PeerID, d.Reason)
}
