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
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/relayr/relayr/utils/log"
)

// Peer roles reported in peerDisconnected frames.
const (
	RoleSender    = "sender"
	RoleRecipient = "recipient"
)

// serializationFallback is pushed in place of a response that failed to
// marshal, so the client always receives valid JSON.
const serializationFallback = `{"success":false,"message":"internal serialization error"}`

// Encode marshals an outbound frame for the wire. Marshaling the types in
// this package cannot realistically fail; if it somehow does, Encode logs
// and substitutes a minimal fallback payload.
func Encode(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.With("type", fmt.Sprintf("%T", v)).Errorf("Failed to serialize outbound frame: %s", err)
		return []byte(serializationFallback)
	}
	return b
}

// RegisterResponse is the first frame pushed on every new connection,
// echoing the peer id the connection registered under.
type RegisterResponse struct {
	Success   bool   `json:"success"`
	Type      string `json:"type"`
	ConnID    string `json:"connId"`
	Timestamp int64  `json:"timestamp"`
}

// NewRegisterResponse creates a new RegisterResponse.
func NewRegisterResponse(connID string, ts int64) *RegisterResponse {
	return &RegisterResponse{
		Success:   true,
		Type:      TypeRegister,
		ConnID:    connID,
		Timestamp: ts,
	}
}

// RecipientReadyResponse notifies a sender that a recipient claimed it.
type RecipientReadyResponse struct {
	Success     bool   `json:"success"`
	Type        string `json:"type"`
	RecipientID string `json:"recipientId"`
	SenderID    string `json:"senderId"`
	Timestamp   int64  `json:"timestamp"`
}

// NewRecipientReadyResponse creates a new RecipientReadyResponse.
func NewRecipientReadyResponse(recipientID, senderID string, ts int64) *RecipientReadyResponse {
	return &RecipientReadyResponse{
		Success:     true,
		Type:        TypeRecipientReady,
		RecipientID: recipientID,
		SenderID:    senderID,
		Timestamp:   ts,
	}
}

// CancelRecipientReadyResponse notifies a sender that its paired recipient
// withdrew before the transfer started.
type CancelRecipientReadyResponse struct {
	Success     bool   `json:"success"`
	Type        string `json:"type"`
	RecipientID string `json:"recipientId"`
	SenderID    string `json:"senderId"`
	Timestamp   int64  `json:"timestamp"`
}

// NewCancelRecipientReadyResponse creates a new CancelRecipientReadyResponse.
func NewCancelRecipientReadyResponse(recipientID, senderID string, ts int64) *CancelRecipientReadyResponse {
	return &CancelRecipientReadyResponse{
		Success:     true,
		Type:        TypeCancelRecipientReady,
		RecipientID: recipientID,
		SenderID:    senderID,
		Timestamp:   ts,
	}
}

// CancelSenderReadyResponse notifies a recipient that the sender dissolved
// the pairing.
type CancelSenderReadyResponse struct {
	Success     bool   `json:"success"`
	Type        string `json:"type"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Timestamp   int64  `json:"timestamp"`
}

// NewCancelSenderReadyResponse creates a new CancelSenderReadyResponse.
func NewCancelSenderReadyResponse(senderID, recipientID string, ts int64) *CancelSenderReadyResponse {
	return &CancelSenderReadyResponse{
		Success:     true,
		Type:        TypeCancelSenderReady,
		SenderID:    senderID,
		RecipientID: recipientID,
		Timestamp:   ts,
	}
}

// FileChunkResponse relays sender-side chunk progress to the recipient.
type FileChunkResponse struct {
	Success                bool   `json:"success"`
	Type                   string `json:"type"`
	SenderID               string `json:"senderId"`
	RecipientID            string `json:"recipientId"`
	FileName               string `json:"fileName"`
	TotalSize              uint64 `json:"totalSize"`
	TotalChunks            uint16 `json:"totalChunks"`
	UploadedSize           uint64 `json:"uploadedSize"`
	ChunkIndex             uint32 `json:"chunkIndex"`
	ChunkDataSize          uint32 `json:"chunkDataSize"`
	SenderTransferProgress uint8  `json:"senderTransferProgress"`
	Timestamp              int64  `json:"timestamp"`
}

// NewFileChunkResponse creates a FileChunkResponse from the inbound event
// and the resolved pairing.
func NewFileChunkResponse(senderID, recipientID string, ev *FileChunkEvent, ts int64) *FileChunkResponse {
	return &FileChunkResponse{
		Success:                true,
		Type:                   TypeFileChunk,
		SenderID:               senderID,
		RecipientID:            recipientID,
		FileName:               ev.FileName,
		TotalSize:              ev.TotalSize,
		TotalChunks:            ev.TotalChunks,
		UploadedSize:           ev.UploadedSize,
		ChunkIndex:             ev.ChunkIndex,
		ChunkDataSize:          ev.ChunkDataSize,
		SenderTransferProgress: ev.SenderTransferProgress,
		Timestamp:              ts,
	}
}

// FileTransferAckResponse relays a recipient's chunk acknowledgement back to
// the sender.
type FileTransferAckResponse struct {
	Success                   bool   `json:"success"`
	Type                      string `json:"type"`
	RecipientID               string `json:"recipientId"`
	SenderID                  string `json:"senderId"`
	Status                    string `json:"status"`
	FileName                  string `json:"fileName"`
	TotalChunks               uint16 `json:"totalChunks"`
	UploadedSize              uint64 `json:"uploadedSize"`
	ChunkIndex                uint32 `json:"chunkIndex"`
	ChunkDataSize             uint32 `json:"chunkDataSize"`
	RecipientTransferProgress uint8  `json:"recipientTransferProgress"`
	Timestamp                 int64  `json:"timestamp"`
}

// NewFileTransferAckResponse creates a FileTransferAckResponse from the
// inbound event and the resolved recipient.
func NewFileTransferAckResponse(recipientID string, ev *FileTransferAckEvent, ts int64) *FileTransferAckResponse {
	return &FileTransferAckResponse{
		Success:                   true,
		Type:                      TypeFileTransferAck,
		RecipientID:               recipientID,
		SenderID:                  ev.SenderID,
		Status:                    ev.Status,
		FileName:                  ev.FileName,
		TotalChunks:               ev.TotalChunks,
		UploadedSize:              ev.UploadedSize,
		ChunkIndex:                ev.ChunkIndex,
		ChunkDataSize:             ev.ChunkDataSize,
		RecipientTransferProgress: ev.RecipientTransferProgress,
		Timestamp:                 ts,
	}
}

// FileEndResponse relays the final-chunk marker to the recipient.
type FileEndResponse struct {
	Success        bool   `json:"success"`
	Type           string `json:"type"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
	FileName       string `json:"fileName"`
	TotalSize      uint64 `json:"totalSize"`
	TotalChunks    uint16 `json:"totalChunks"`
	UploadedSize   uint64 `json:"uploadedSize"`
	LastChunkIndex uint32 `json:"lastChunkIndex"`
	Timestamp      int64  `json:"timestamp"`
}

// NewFileEndResponse creates a FileEndResponse from the inbound event and
// the resolved pairing.
func NewFileEndResponse(senderID, recipientID string, ev *FileEndEvent, ts int64) *FileEndResponse {
	return &FileEndResponse{
		Success:        true,
		Type:           TypeFileEnd,
		SenderID:       senderID,
		RecipientID:    recipientID,
		FileName:       ev.FileName,
		TotalSize:      ev.TotalSize,
		TotalChunks:    ev.TotalChunks,
		UploadedSize:   ev.UploadedSize,
		LastChunkIndex: ev.LastChunkIndex,
		Timestamp:      ts,
	}
}

// CancelSenderTransferResponse tells the recipient the sender aborted an
// in-flight transfer. The pairing survives.
type CancelSenderTransferResponse struct {
	Success     bool   `json:"success"`
	Type        string `json:"type"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Timestamp   int64  `json:"timestamp"`
}

// NewCancelSenderTransferResponse creates a new CancelSenderTransferResponse.
func NewCancelSenderTransferResponse(senderID, recipientID string, ts int64) *CancelSenderTransferResponse {
	return &CancelSenderTransferResponse{
		Success:     true,
		Type:        TypeCancelSenderTransfer,
		SenderID:    senderID,
		RecipientID: recipientID,
		Timestamp:   ts,
	}
}

// CancelRecipientTransferResponse tells the sender the recipient aborted an
// in-flight transfer. The pairing survives.
type CancelRecipientTransferResponse struct {
	Success     bool   `json:"success"`
	Type        string `json:"type"`
	RecipientID string `json:"recipientId"`
	SenderID    string `json:"senderId"`
	Timestamp   int64  `json:"timestamp"`
}

// NewCancelRecipientTransferResponse creates a new CancelRecipientTransferResponse.
func NewCancelRecipientTransferResponse(recipientID, senderID string, ts int64) *CancelRecipientTransferResponse {
	return &CancelRecipientTransferResponse{
		Success:     true,
		Type:        TypeCancelRecipientTransfer,
		RecipientID: recipientID,
		SenderID:    senderID,
		Timestamp:   ts,
	}
}

// SenderAckResponse relays a generic sender acknowledgement to the recipient.
type SenderAckResponse struct {
	Success     bool   `json:"success"`
	Type        string `json:"type"`
	RequestType string `json:"requestType"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Message     string `json:"message,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// NewSenderAckResponse creates a new SenderAckResponse.
func NewSenderAckResponse(requestType, senderID, recipientID, message string, ts int64) *SenderAckResponse {
	return &SenderAckResponse{
		Success:     true,
		Type:        TypeSenderAck,
		RequestType: requestType,
		SenderID:    senderID,
		RecipientID: recipientID,
		Message:     message,
		Timestamp:   ts,
	}
}

// RestartTransferResponse asks the recipient to restart the transfer.
type RestartTransferResponse struct {
	Success     bool   `json:"success"`
	Type        string `json:"type"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Timestamp   int64  `json:"timestamp"`
}

// NewRestartTransferResponse creates a new RestartTransferResponse.
func NewRestartTransferResponse(senderID, recipientID string, ts int64) *RestartTransferResponse {
	return &RestartTransferResponse{
		Success:     true,
		Type:        TypeRestartTransfer,
		SenderID:    senderID,
		RecipientID: recipientID,
		Timestamp:   ts,
	}
}

// PeerDisconnectedResponse informs a surviving peer that its counterparty
// dropped, with the role the departed peer held in the pairing.
type PeerDisconnectedResponse struct {
	Success   bool   `json:"success"`
	Type      string `json:"type"`
	PeerID    string `json:"peerId"`
	Role      string `json:"role"`
	Timestamp int64  `json:"timestamp"`
}

// NewPeerDisconnectedResponse creates a new PeerDisconnectedResponse.
func NewPeerDisconnectedResponse(peerID, role string, ts int64) *PeerDisconnectedResponse {
	return &PeerDisconnectedResponse{
		Success:   true,
		Type:      TypePeerDisconnected,
		PeerID:    peerID,
		Role:      role,
		Timestamp: ts,
	}
}
