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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeRegisterResponse(t *testing.T) {
	require := require.New(t)

	// Field order is part of the wire contract.
	require.Equal(
		`{"success":true,"type":"register","connId":"A","timestamp":1700000000}`,
		string(Encode(NewRegisterResponse("A", 1700000000))))
}

func TestEncodeRecipientReadyResponse(t *testing.T) {
	require := require.New(t)

	require.Equal(
		`{"success":true,"type":"recipientReady","recipientId":"B","senderId":"A","timestamp":42}`,
		string(Encode(NewRecipientReadyResponse("B", "A", 42))))
}

func TestEncodeFileChunkResponse(t *testing.T) {
	require := require.New(t)

	ev := &FileChunkEvent{
		FileName:               "x.bin",
		TotalSize:              1000,
		TotalChunks:            4,
		UploadedSize:           500,
		ChunkIndex:             2,
		ChunkDataSize:          250,
		SenderTransferProgress: 50,
	}
	require.Equal(
		`{"success":true,"type":"fileChunk","senderId":"A","recipientId":"B",`+
			`"fileName":"x.bin","totalSize":1000,"totalChunks":4,"uploadedSize":500,`+
			`"chunkIndex":2,"chunkDataSize":250,"senderTransferProgress":50,"timestamp":42}`,
		string(Encode(NewFileChunkResponse("A", "B", ev, 42))))
}

func TestEncodePeerDisconnectedResponse(t *testing.T) {
	require := require.New(t)

	require.Equal(
		`{"success":true,"type":"peerDisconnected","peerId":"B","role":"recipient","timestamp":42}`,
		string(Encode(NewPeerDisconnectedResponse("B", RoleRecipient, 42))))
}

func TestEncodeSenderAckResponseOmitsEmptyMessage(t *testing.T) {
	require := require.New(t)

	require.Equal(
		`{"success":true,"type":"senderAck","requestType":"fileMeta","senderId":"A",`+
			`"recipientId":"B","timestamp":42}`,
		string(Encode(NewSenderAckResponse("fileMeta", "A", "B", "", 42))))

	require.Equal(
		`{"success":true,"type":"senderAck","requestType":"fileMeta","senderId":"A",`+
			`"recipientId":"B","message":"hi","timestamp":42}`,
		string(Encode(NewSenderAckResponse("fileMeta", "A", "B", "hi", 42))))
}

func TestEncodeErrorMessage(t *testing.T) {
	require := require.New(t)

	require.Equal(
		`{"success":false,"code":"recipientMismatch","message":"nope","timestamp":42}`,
		string(Encode(NewError(ErrCodeRecipientMismatch, "nope", 42))))

	require.Equal(
		`{"success":false,"code":"invalidPayload","message":"failed to parse payload",`+
			"\"details\":\"missing field `senderId`\",\"timestamp\":42}",
		string(Encode(NewError(ErrCodeInvalidPayload, "failed to parse payload", 42).
			WithDetails("missing field `senderId`"))))
}

func TestEncodeFallback(t *testing.T) {
	require := require.New(t)

	// Channels cannot be marshaled; Encode must still return valid JSON.
	require.Equal(serializationFallback, string(Encode(make(chan int))))
}
