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

// Package protocol defines the relay wire protocol: the tagged JSON events
// clients send over text frames, the response documents the relay pushes
// back, and the error frames surfaced on protocol violations.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Wire discriminators for text frames. Inbound events and their echoed
// responses share the same tag; register and peerDisconnected are
// server-initiated only.
const (
	TypeRegister                = "register"
	TypeFileMeta                = "fileMeta"
	TypeRecipientReady          = "recipientReady"
	TypeCancelRecipientReady    = "cancelRecipientReady"
	TypeCancelSenderReady       = "cancelSenderReady"
	TypeFileChunk               = "fileChunk"
	TypeFileTransferAck         = "fileTransferAck"
	TypeFileEnd                 = "fileEnd"
	TypeCancelSenderTransfer    = "cancelSenderTransfer"
	TypeCancelRecipientTransfer = "cancelRecipientTransfer"
	TypeSenderAck               = "senderAck"
	TypeRestartTransfer         = "restartTransfer"
	TypeUserClose               = "userClose"
	TypeTerminate               = "terminate"
	TypePeerDisconnected        = "peerDisconnected"
)

// Event is an inbound protocol message decoded from a text frame. It is a
// closed set: clients cannot define new events, and unrecognized tags decode
// into UnknownEvent so the dispatcher can report them without killing the
// connection.
type Event interface {
	// Tag returns the wire discriminator of the event.
	Tag() string

	validate() error
}

func missingField(name string) error {
	return fmt.Errorf("missing field `%s`", name)
}

// FileMetaEvent announces the file a sender intends to transfer. The relay
// stores the metadata for the file-meta HTTP endpoint; nothing is forwarded.
// SenderID defaults to the connection's own peer id when absent.
type FileMetaEvent struct {
	SenderID string `json:"senderId"`
	Name     string `json:"name"`
	Size     uint64 `json:"size"`
	MimeType string `json:"mimeType"`
}

// Tag returns the wire discriminator of the event.
func (e *FileMetaEvent) Tag() string { return TypeFileMeta }

func (e *FileMetaEvent) validate() error {
	if e.Name == "" {
		return missingField("name")
	}
	if e.MimeType == "" {
		return missingField("mimeType")
	}
	return nil
}

// RecipientReadyEvent is a recipient's claim on a connected sender. A
// successful claim creates the pairing and notifies the sender.
type RecipientReadyEvent struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
}

// Tag returns the wire discriminator of the event.
func (e *RecipientReadyEvent) Tag() string { return TypeRecipientReady }

func (e *RecipientReadyEvent) validate() error {
	if e.SenderID == "" {
		return missingField("senderId")
	}
	return nil
}

// CancelRecipientReadyEvent dissolves a pairing from the recipient side.
// The payload's recipient id must match the currently paired recipient.
type CancelRecipientReadyEvent struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
}

// Tag returns the wire discriminator of the event.
func (e *CancelRecipientReadyEvent) Tag() string { return TypeCancelRecipientReady }

func (e *CancelRecipientReadyEvent) validate() error {
	if e.SenderID == "" {
		return missingField("senderId")
	}
	return nil
}

// CancelSenderReadyEvent dissolves a pairing from the sender side.
type CancelSenderReadyEvent struct {
	SenderID string `json:"senderId"`
}

// Tag returns the wire discriminator of the event.
func (e *CancelSenderReadyEvent) Tag() string { return TypeCancelSenderReady }

func (e *CancelSenderReadyEvent) validate() error { return nil }

// FileChunkEvent reports sender-side progress for one chunk. The chunk bytes
// themselves travel as a separate binary frame; this event is relayed to the
// paired recipient as a fileChunk response.
type FileChunkEvent struct {
	SenderID               string `json:"senderId"`
	FileName               string `json:"fileName"`
	TotalSize              uint64 `json:"totalSize"`
	TotalChunks            uint16 `json:"totalChunks"`
	UploadedSize           uint64 `json:"uploadedSize"`
	ChunkIndex             uint32 `json:"chunkIndex"`
	ChunkDataSize          uint32 `json:"chunkDataSize"`
	SenderTransferProgress uint8  `json:"senderTransferProgress"`
}

// Tag returns the wire discriminator of the event.
func (e *FileChunkEvent) Tag() string { return TypeFileChunk }

func (e *FileChunkEvent) validate() error {
	if e.FileName == "" {
		return missingField("fileName")
	}
	return nil
}

// FileTransferAckEvent is the recipient's acknowledgement of a received
// chunk, relayed back to the sender. Unlike most events it resolves the
// sender by explicit id rather than through the pairing table.
type FileTransferAckEvent struct {
	RecipientID               string `json:"recipientId"`
	SenderID                  string `json:"senderId"`
	Status                    string `json:"status"`
	FileName                  string `json:"fileName"`
	TotalChunks               uint16 `json:"totalChunks"`
	UploadedSize              uint64 `json:"uploadedSize"`
	ChunkIndex                uint32 `json:"chunkIndex"`
	ChunkDataSize             uint32 `json:"chunkDataSize"`
	RecipientTransferProgress uint8  `json:"recipientTransferProgress"`
}

// Tag returns the wire discriminator of the event.
func (e *FileTransferAckEvent) Tag() string { return TypeFileTransferAck }

func (e *FileTransferAckEvent) validate() error {
	if e.SenderID == "" {
		return missingField("senderId")
	}
	if e.Status == "" {
		return missingField("status")
	}
	if e.FileName == "" {
		return missingField("fileName")
	}
	return nil
}

// FileEndEvent marks the final chunk of a transfer, relayed to the paired
// recipient.
type FileEndEvent struct {
	SenderID       string `json:"senderId"`
	FileName       string `json:"fileName"`
	TotalSize      uint64 `json:"totalSize"`
	TotalChunks    uint16 `json:"totalChunks"`
	UploadedSize   uint64 `json:"uploadedSize"`
	LastChunkIndex uint32 `json:"lastChunkIndex"`
}

// Tag returns the wire discriminator of the event.
func (e *FileEndEvent) Tag() string { return TypeFileEnd }

func (e *FileEndEvent) validate() error {
	if e.FileName == "" {
		return missingField("fileName")
	}
	return nil
}

// CancelSenderTransferEvent aborts an in-flight transfer from the sender
// side. The pairing is preserved; only the recipient is informed.
type CancelSenderTransferEvent struct {
	SenderID string `json:"senderId"`
}

// Tag returns the wire discriminator of the event.
func (e *CancelSenderTransferEvent) Tag() string { return TypeCancelSenderTransfer }

func (e *CancelSenderTransferEvent) validate() error { return nil }

// CancelRecipientTransferEvent aborts an in-flight transfer from the
// recipient side. It is a soft signal to the sender: the pairing stays
// intact until the sender dissolves it.
type CancelRecipientTransferEvent struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
}

// Tag returns the wire discriminator of the event.
func (e *CancelRecipientTransferEvent) Tag() string { return TypeCancelRecipientTransfer }

func (e *CancelRecipientTransferEvent) validate() error {
	if e.SenderID == "" {
		return missingField("senderId")
	}
	return nil
}

// SenderAckEvent is a generic sender acknowledgement relayed to an explicit
// recipient, carrying the request type being acknowledged.
type SenderAckEvent struct {
	RequestType string `json:"requestType"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// Tag returns the wire discriminator of the event.
func (e *SenderAckEvent) Tag() string { return TypeSenderAck }

func (e *SenderAckEvent) validate() error {
	if e.RequestType == "" {
		return missingField("requestType")
	}
	if e.RecipientID == "" {
		return missingField("recipientId")
	}
	if e.Status == "" {
		return missingField("status")
	}
	return nil
}

// RestartTransferEvent asks the paired recipient to restart the transfer.
// It carries no payload; the sender is always the connection itself.
type RestartTransferEvent struct{}

// Tag returns the wire discriminator of the event.
func (e *RestartTransferEvent) Tag() string { return TypeRestartTransfer }

func (e *RestartTransferEvent) validate() error { return nil }

// UserCloseEvent asks the relay to close this connection with a descriptive
// close frame instead of the client closing the socket itself.
type UserCloseEvent struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Reason string `json:"reason"`
}

// Tag returns the wire discriminator of the event.
func (e *UserCloseEvent) Tag() string { return TypeUserClose }

func (e *UserCloseEvent) validate() error {
	if e.Role == "" {
		return missingField("role")
	}
	return nil
}

// TerminateEvent stops the connection's reader without a close handshake.
type TerminateEvent struct{}

// Tag returns the wire discriminator of the event.
func (e *TerminateEvent) Tag() string { return TypeTerminate }

func (e *TerminateEvent) validate() error { return nil }

// UnknownEvent is produced for any unrecognized type tag.
type UnknownEvent struct {
	Type string
}

// Tag returns the wire discriminator of the event.
func (e *UnknownEvent) Tag() string { return e.Type }

func (e *UnknownEvent) validate() error { return nil }

func newEvent(tag string) (Event, bool) {
	switch tag {
	case TypeFileMeta:
		return &FileMetaEvent{}, true
	case TypeRecipientReady:
		return &RecipientReadyEvent{}, true
	case TypeCancelRecipientReady:
		return &CancelRecipientReadyEvent{}, true
	case TypeCancelSenderReady:
		return &CancelSenderReadyEvent{}, true
	case TypeFileChunk:
		return &FileChunkEvent{}, true
	case TypeFileTransferAck:
		return &FileTransferAckEvent{}, true
	case TypeFileEnd:
		return &FileEndEvent{}, true
	case TypeCancelSenderTransfer:
		return &CancelSenderTransferEvent{}, true
	case TypeCancelRecipientTransfer:
		return &CancelRecipientTransferEvent{}, true
	case TypeSenderAck:
		return &SenderAckEvent{}, true
	case TypeRestartTransfer:
		return &RestartTransferEvent{}, true
	case TypeUserClose:
		return &UserCloseEvent{}, true
	case TypeTerminate:
		return &TerminateEvent{}, true
	default:
		return nil, false
	}
}

// DecodeEvent parses a text frame into a typed protocol event. Payloads with
// an unrecognized type tag decode into *UnknownEvent rather than an error so
// callers can distinguish "malformed" from "unsupported". Malformed JSON,
// field type mismatches and missing required fields all return an error
// suitable for an invalidPayload frame's details.
func DecodeEvent(b []byte) (Event, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	ev, ok := newEvent(env.Type)
	if !ok {
		return &UnknownEvent{Type: env.Type}, nil
	}
	if err := json.Unmarshal(b, ev); err != nil {
		return nil, err
	}
	if err := ev.validate(); err != nil {
		return nil, err
	}
	return ev, nil
}
