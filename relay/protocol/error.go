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

// ErrorCode classifies protocol errors surfaced to clients. Codes are part
// of the wire contract and must not be renamed.
type ErrorCode string

// The full set of error codes an error frame may carry.
const (
	ErrCodeInvalidPayload               ErrorCode = "invalidPayload"
	ErrCodeSenderAlreadyConnected       ErrorCode = "senderAlreadyConnected"
	ErrCodeSenderDisconnected           ErrorCode = "senderDisconnected"
	ErrCodeRecipientDisconnected        ErrorCode = "recipientDisconnected"
	ErrCodeActiveConnectionNotFound     ErrorCode = "activeConnectionNotFound"
	ErrCodeRecipientMismatch            ErrorCode = "recipientMismatch"
	ErrCodeUnsupportedWsMessageType     ErrorCode = "unsupportedWsMessageType"
	ErrCodeUnsupportedWsMessageTextType ErrorCode = "unsupportedWsMessageTextType"
)

// ErrorMessage is the error frame pushed to the peer that violated the
// protocol. Routing errors are always local to the originator and never
// reach the counterparty.
type ErrorMessage struct {
	Success   bool      `json:"success"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewError creates a new ErrorMessage.
func NewError(code ErrorCode, msg string, ts int64) *ErrorMessage {
	return &ErrorMessage{
		Success:   false,
		Code:      code,
		Message:   msg,
		Timestamp: ts,
	}
}

// WithDetails attaches free-form diagnostic detail, typically a parser
// message.
func (e *ErrorMessage) WithDetails(details string) *ErrorMessage {
	e.Details = details
	return e
}
