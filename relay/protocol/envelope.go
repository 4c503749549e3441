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

import "encoding/json"

// Envelope is a client-side view of any message the relay emits. It carries
// the union of all response and error fields; fields absent from a given
// message keep their zero values.
type Envelope struct {
	Success                   bool      `json:"success"`
	Type                      string    `json:"type"`
	Code                      ErrorCode `json:"code"`
	Message                   string    `json:"message"`
	Details                   string    `json:"details"`
	ConnID                    string    `json:"connId"`
	PeerID                    string    `json:"peerId"`
	SenderID                  string    `json:"senderId"`
	RecipientID               string    `json:"recipientId"`
	Role                      string    `json:"role"`
	RequestType               string    `json:"requestType"`
	Status                    string    `json:"status"`
	FileName                  string    `json:"fileName"`
	TotalSize                 uint64    `json:"totalSize"`
	TotalChunks               uint16    `json:"totalChunks"`
	UploadedSize              uint64    `json:"uploadedSize"`
	ChunkIndex                uint32    `json:"chunkIndex"`
	ChunkDataSize             uint32    `json:"chunkDataSize"`
	LastChunkIndex            uint32    `json:"lastChunkIndex"`
	SenderTransferProgress    uint8     `json:"senderTransferProgress"`
	RecipientTransferProgress uint8     `json:"recipientTransferProgress"`
	Timestamp                 int64     `json:"timestamp"`
}

// DecodeEnvelope unmarshals a single relay text frame into an Envelope.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
