// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package dispatch

import (
	"fmt"
	"unicode/utf8"

	"github.com/relayr/relayr/core"
	"github.com/relayr/relayr/relay/conn"
	"github.com/relayr/relayr/relay/peerstore"
	"github.com/relayr/relayr/relay/protocol"
	"github.com/relayr/relayr/utils/log"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// Close frame payloads are capped at 125 bytes, two of which hold the status
// code.
const maxCloseReasonBytes = 123

// Dispatcher routes decoded events between paired peers. It has a one-to-many
// relationship with Conns: every connection shares the same Dispatcher, which
// resolves the counterpart's outbound queue through the peer store.
//
// Handlers run on each connection's reader goroutine, so two events from the
// same peer are never handled concurrently, while events from different peers
// may be.
type Dispatcher struct {
	stats tally.Scope
	clk   clock.Clock
	store *peerstore.Store
}

// New creates a new Dispatcher around store.
func New(stats tally.Scope, clk clock.Clock, store *peerstore.Store) *Dispatcher {
	stats = stats.Tagged(map[string]string{
		"module": "dispatch",
	})
	return &Dispatcher{stats, clk, store}
}

// HandleOpen registers c with the peer store and acknowledges the connection.
// The register response is enqueued before the queue becomes discoverable by
// other peers, so it is always the first frame a client receives.
func (d *Dispatcher) HandleOpen(c *conn.Conn) {
	d.reply(c, protocol.NewRegisterResponse(c.PeerID(), d.now()))
	d.store.AddPeer(c.PeerID(), c.Queue())

	d.stats.Counter("connections_opened").Inc(1)
	d.log("peer", c.PeerID()).Info("Peer connected")
}

// HandleText decodes and routes a single text frame from c.
func (d *Dispatcher) HandleText(c *conn.Conn, b []byte) {
	ev, err := protocol.DecodeEvent(b)
	if err != nil {
		d.stats.Counter("invalid_payloads").Inc(1)
		e := protocol.NewError(
			protocol.ErrCodeInvalidPayload, "failed to parse payload", d.now()).WithDetails(err.Error())
		d.reply(c, e)
		return
	}
	d.stats.Tagged(map[string]string{"msg_type": ev.Tag()}).Counter("messages").Inc(1)

	switch v := ev.(type) {
	case *protocol.FileMetaEvent:
		d.handleFileMeta(c, v)
	case *protocol.RecipientReadyEvent:
		d.handleRecipientReady(c, v)
	case *protocol.CancelRecipientReadyEvent:
		d.handleCancelRecipientReady(c, v)
	case *protocol.CancelSenderReadyEvent:
		d.handleCancelSenderReady(c, v)
	case *protocol.FileChunkEvent:
		d.handleFileChunk(c, v)
	case *protocol.FileTransferAckEvent:
		d.handleFileTransferAck(c, v)
	case *protocol.FileEndEvent:
		d.handleFileEnd(c, v)
	case *protocol.CancelSenderTransferEvent:
		d.handleCancelSenderTransfer(c, v)
	case *protocol.CancelRecipientTransferEvent:
		d.handleCancelRecipientTransfer(c, v)
	case *protocol.SenderAckEvent:
		d.handleSenderAck(c, v)
	case *protocol.RestartTransferEvent:
		d.handleRestartTransfer(c)
	case *protocol.UserCloseEvent:
		d.handleUserClose(c, v)
	case *protocol.TerminateEvent:
		d.handleTerminate(c)
	default:
		d.stats.Counter("unknown_messages").Inc(1)
		d.replyError(c, protocol.ErrCodeUnsupportedWsMessageTextType, "unknown json message type")
	}
}

// HandleBinary forwards an opaque chunk from c to its paired recipient. The
// payload is never inspected.
func (d *Dispatcher) HandleBinary(c *conn.Conn, b []byte) {
	d.stats.Tagged(map[string]string{"msg_type": "binary"}).Counter("messages").Inc(1)

	senderID := c.PeerID()
	recipientID, ok := d.store.RecipientOf(senderID)
	if !ok {
		d.replyError(c, protocol.ErrCodeActiveConnectionNotFound,
			fmt.Sprintf("active connection for sender_id: `%s` not found", senderID))
		return
	}
	q, ok := d.store.GetQueue(recipientID)
	if !ok {
		d.replyError(c, protocol.ErrCodeRecipientDisconnected,
			fmt.Sprintf("recipient `%s` is no longer connected", recipientID))
		return
	}
	d.forward(c, q, recipientID, conn.BinaryFrame(b))
}

// HandleClose notifies the counterpart that c's peer went away, then removes
// every trace of the peer from the store. A transfer-completed close skips
// the notification since the counterpart initiated the handshake that ended
// the session.
func (d *Dispatcher) HandleClose(peerID string, reason conn.DisconnectReason) {
	if reason != conn.ReasonTransferCompleted {
		d.notifyPeerDisconnected(peerID)
	}

	// Cleanup leaves no trace of the peer: staged metadata, its queue, the
	// pairing it holds as a sender, and any pairing still valuing it as a
	// recipient. The notification above dissolves the common recipient-side
	// case, but it is skipped on transfer-completed closes.
	d.store.ClearMetadata(peerID)
	d.store.RemovePeer(peerID)
	for {
		senderID, ok := d.store.SenderOf(peerID)
		if !ok {
			break
		}
		d.store.Unpair(senderID)
	}

	d.stats.Tagged(map[string]string{"reason": reason.String()}).Counter("connections_closed").Inc(1)
	d.log("peer", peerID, "reason", reason).Info("Peer disconnected")
}

func (d *Dispatcher) notifyPeerDisconnected(peerID string) {
	// A peer may hold a pairing as a sender and appear in another as a
	// recipient; both counterparts are notified.
	if recipientID, ok := d.store.RecipientOf(peerID); ok {
		if q, ok := d.store.GetQueue(recipientID); ok {
			d.notify(q, recipientID,
				protocol.NewPeerDisconnectedResponse(peerID, protocol.RoleSender, d.now()))
		}
	}
	if senderID, ok := d.store.SenderOf(peerID); ok {
		if q, ok := d.store.GetQueue(senderID); ok {
			d.store.Unpair(senderID)
			d.notify(q, senderID,
				protocol.NewPeerDisconnectedResponse(peerID, protocol.RoleRecipient, d.now()))
		}
	}
}

func (d *Dispatcher) handleFileMeta(c *conn.Conn, ev *protocol.FileMetaEvent) {
	senderID := orSelf(ev.SenderID, c)
	md := core.NewFileMetadata(ev.Name, ev.Size, ev.MimeType)
	d.store.PutMetadata(senderID, md)
	d.log("peer", senderID, "file", md).Info("Stored file metadata")
}

func (d *Dispatcher) handleRecipientReady(c *conn.Conn, ev *protocol.RecipientReadyEvent) {
	senderID := ev.SenderID
	recipientID := orSelf(ev.RecipientID, c)

	if existing, ok := d.store.RecipientOf(senderID); ok {
		d.replyError(c, protocol.ErrCodeSenderAlreadyConnected,
			fmt.Sprintf("sender `%s` is already connected to recipient `%s`", senderID, existing))
		return
	}
	q, ok := d.store.GetQueue(senderID)
	if !ok {
		d.replyError(c, protocol.ErrCodeSenderDisconnected,
			fmt.Sprintf("sender `%s` is no longer connected", senderID))
		return
	}

	// Pair before notifying so the sender never observes a ready signal for
	// an unregistered pairing.
	d.store.Pair(senderID, recipientID)
	d.forwardText(c, q, senderID, protocol.NewRecipientReadyResponse(recipientID, senderID, d.now()))
	d.log("sender", senderID, "recipient", recipientID).Info("Paired peers")
}

func (d *Dispatcher) handleCancelRecipientReady(c *conn.Conn, ev *protocol.CancelRecipientReadyEvent) {
	senderID := ev.SenderID
	recipientID := orSelf(ev.RecipientID, c)

	paired, ok := d.store.RecipientOf(senderID)
	if !ok {
		d.replyError(c, protocol.ErrCodeActiveConnectionNotFound,
			fmt.Sprintf("active connection for sender_id: `%s` not found", senderID))
		return
	}
	if paired != recipientID {
		d.replyError(c, protocol.ErrCodeRecipientMismatch,
			fmt.Sprintf("recipient ID mismatch. expected `%s`, got `%s`", paired, recipientID))
		return
	}
	q, ok := d.store.GetQueue(senderID)
	if !ok {
		d.replyError(c, protocol.ErrCodeSenderDisconnected,
			fmt.Sprintf("sender `%s` is no longer connected", senderID))
		return
	}

	d.store.Unpair(senderID)
	d.forwardText(c, q, senderID, protocol.NewCancelRecipientReadyResponse(recipientID, senderID, d.now()))
	d.log("sender", senderID, "recipient", recipientID).Info("Unpaired peers")
}

func (d *Dispatcher) handleCancelSenderReady(c *conn.Conn, ev *protocol.CancelSenderReadyEvent) {
	senderID := orSelf(ev.SenderID, c)

	recipientID, ok := d.store.RecipientOf(senderID)
	if !ok {
		d.replyError(c, protocol.ErrCodeActiveConnectionNotFound,
			fmt.Sprintf("active connection for sender_id: `%s` not found", senderID))
		return
	}

	// The pairing dissolves even if the recipient is already gone.
	d.store.Unpair(senderID)

	q, ok := d.store.GetQueue(recipientID)
	if !ok {
		d.replyError(c, protocol.ErrCodeRecipientDisconnected,
			fmt.Sprintf("recipient with id `%s` has no active connection", recipientID))
		return
	}
	d.forwardText(c, q, recipientID, protocol.NewCancelSenderReadyResponse(senderID, recipientID, d.now()))
	d.log("sender", senderID, "recipient", recipientID).Info("Unpaired peers")
}

func (d *Dispatcher) handleFileChunk(c *conn.Conn, ev *protocol.FileChunkEvent) {
	senderID := orSelf(ev.SenderID, c)

	recipientID, q, ok := d.pairedRecipient(c, senderID)
	if !ok {
		return
	}
	d.forwardText(c, q, recipientID, protocol.NewFileChunkResponse(senderID, recipientID, ev, d.now()))
}

func (d *Dispatcher) handleFileTransferAck(c *conn.Conn, ev *protocol.FileTransferAckEvent) {
	recipientID := orSelf(ev.RecipientID, c)

	// Acks resolve the sender by explicit id, not through the pairing table,
	// so a late ack still reaches a sender whose pairing was dissolved.
	q, ok := d.store.GetQueue(ev.SenderID)
	if !ok {
		d.replyError(c, protocol.ErrCodeSenderDisconnected,
			fmt.Sprintf("sender `%s` is no longer connected", ev.SenderID))
		return
	}
	d.forwardText(c, q, ev.SenderID, protocol.NewFileTransferAckResponse(recipientID, ev, d.now()))
}

func (d *Dispatcher) handleFileEnd(c *conn.Conn, ev *protocol.FileEndEvent) {
	senderID := orSelf(ev.SenderID, c)

	recipientID, q, ok := d.pairedRecipient(c, senderID)
	if !ok {
		return
	}
	d.forwardText(c, q, recipientID, protocol.NewFileEndResponse(senderID, recipientID, ev, d.now()))
}

func (d *Dispatcher) handleCancelSenderTransfer(c *conn.Conn, ev *protocol.CancelSenderTransferEvent) {
	senderID := orSelf(ev.SenderID, c)

	recipientID, q, ok := d.pairedRecipient(c, senderID)
	if !ok {
		return
	}
	d.forwardText(c, q, recipientID, protocol.NewCancelSenderTransferResponse(senderID, recipientID, d.now()))
}

func (d *Dispatcher) handleCancelRecipientTransfer(c *conn.Conn, ev *protocol.CancelRecipientTransferEvent) {
	senderID := ev.SenderID
	recipientID := orSelf(ev.RecipientID, c)

	paired, ok := d.store.RecipientOf(senderID)
	if !ok {
		d.replyError(c, protocol.ErrCodeActiveConnectionNotFound,
			fmt.Sprintf("active connection for sender_id: `%s` not found", senderID))
		return
	}
	if paired != recipientID {
		d.replyError(c, protocol.ErrCodeRecipientMismatch,
			fmt.Sprintf("recipient ID mismatch. Expected `%s`, `%s`", paired, recipientID))
		return
	}
	q, ok := d.store.GetQueue(senderID)
	if !ok {
		d.replyError(c, protocol.ErrCodeSenderDisconnected,
			fmt.Sprintf("sender `%s` is no longer connected", senderID))
		return
	}

	// Unlike cancelRecipientReady, the pairing stays intact. The sender
	// decides whether to dissolve it or restart the transfer.
	d.forwardText(c, q, senderID, protocol.NewCancelRecipientTransferResponse(recipientID, senderID, d.now()))
}

func (d *Dispatcher) handleSenderAck(c *conn.Conn, ev *protocol.SenderAckEvent) {
	senderID := orSelf(ev.SenderID, c)

	q, ok := d.store.GetQueue(ev.RecipientID)
	if !ok {
		d.replyError(c, protocol.ErrCodeRecipientDisconnected,
			fmt.Sprintf("recipient `%s` is no longer connected", ev.RecipientID))
		return
	}
	d.forwardText(c, q, ev.RecipientID,
		protocol.NewSenderAckResponse(ev.RequestType, senderID, ev.RecipientID, ev.Message, d.now()))
}

func (d *Dispatcher) handleRestartTransfer(c *conn.Conn) {
	senderID := c.PeerID()

	recipientID, q, ok := d.pairedRecipient(c, senderID)
	if !ok {
		return
	}
	d.forwardText(c, q, recipientID, protocol.NewRestartTransferResponse(senderID, recipientID, d.now()))
}

func (d *Dispatcher) handleUserClose(c *conn.Conn, ev *protocol.UserCloseEvent) {
	userID := orSelf(ev.UserID, c)
	reason := ev.Reason
	if reason == "" {
		reason = "Closed with no reason."
	}

	message := fmt.Sprintf("User `%s` with role `%s`. %s", userID, ev.Role, reason)
	for len(message) > maxCloseReasonBytes {
		_, size := utf8.DecodeLastRuneInString(message)
		message = message[:len(message)-size]
	}

	// The close frame travels through the peer's own queue. Once the client
	// echoes it back, the reader tears the connection down.
	if err := c.Send(conn.CloseFrame(message)); err != nil {
		d.log("peer", c.PeerID()).Errorf("Error sending close frame: %s", err)
	}
	d.log("peer", userID, "role", ev.Role).Info("User requested close")
}

func (d *Dispatcher) handleTerminate(c *conn.Conn) {
	c.Stop()
	d.log("peer", c.PeerID()).Info("Terminating connection")
}

// pairedRecipient resolves senderID's paired recipient and its queue,
// replying with the appropriate error to c when either is missing.
func (d *Dispatcher) pairedRecipient(c *conn.Conn, senderID string) (string, *conn.Queue, bool) {
	recipientID, ok := d.store.RecipientOf(senderID)
	if !ok {
		d.replyError(c, protocol.ErrCodeActiveConnectionNotFound,
			fmt.Sprintf("active connection for sender_id: `%s` not found", senderID))
		return "", nil, false
	}
	q, ok := d.store.GetQueue(recipientID)
	if !ok {
		d.replyError(c, protocol.ErrCodeRecipientDisconnected,
			fmt.Sprintf("recipient `%s` is no longer connected", recipientID))
		return "", nil, false
	}
	return recipientID, q, true
}

// reply sends v back on the originating connection. An enqueue failure means
// the connection is tearing down, so the reader is told to stop.
func (d *Dispatcher) reply(c *conn.Conn, v interface{}) {
	if err := c.Send(conn.TextFrame(protocol.Encode(v))); err != nil {
		d.log("peer", c.PeerID()).Errorf("Error sending reply: %s", err)
		c.Stop()
	}
}

func (d *Dispatcher) replyError(c *conn.Conn, code protocol.ErrorCode, msg string) {
	d.stats.Tagged(map[string]string{"error_code": string(code)}).Counter("errors").Inc(1)
	d.reply(c, protocol.NewError(code, msg, d.now()))
}

// forwardText sends v to a counterpart's queue on behalf of c.
func (d *Dispatcher) forwardText(c *conn.Conn, q *conn.Queue, peerID string, v interface{}) {
	d.forward(c, q, peerID, conn.TextFrame(protocol.Encode(v)))
}

func (d *Dispatcher) forward(c *conn.Conn, q *conn.Queue, peerID string, f conn.Frame) {
	if err := q.Send(f); err != nil {
		d.log("peer", peerID).Errorf("Error forwarding frame: %s", err)
		c.Stop()
	}
}

// notify is a best-effort send used during disconnect handling, where no
// originating connection remains.
func (d *Dispatcher) notify(q *conn.Queue, peerID string, v interface{}) {
	if err := q.Send(conn.TextFrame(protocol.Encode(v))); err != nil {
		d.log("peer", peerID).Errorf("Error notifying peer: %s", err)
	}
}

func (d *Dispatcher) now() int64 {
	return d.clk.Now().Unix()
}

func (d *Dispatcher) log(args ...interface{}) *zap.SugaredLogger {
	return log.With(args...)
}

func orSelf(id string, c *conn.Conn) string {
	if id == "" {
		return c.PeerID()
	}
	return id
}
