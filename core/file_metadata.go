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
package core

import "fmt"

// FileMetadata describes the file a sender has announced for transfer.
// The relay never inspects file content, so this is the only file state
// it tracks per sender.
type FileMetadata struct {
	Name     string `json:"name"`
	Size     uint64 `json:"size"`
	MimeType string `json:"type"`
}

// NewFileMetadata creates a new FileMetadata.
func NewFileMetadata(name string, size uint64, mimeType string) *FileMetadata {
	return &FileMetadata{
		Name:     name,
		Size:     size,
		MimeType: mimeType,
	}
}

func (m *FileMetadata) String() string {
	return fmt.Sprintf("%s (%d bytes, %s)", m.Name, m.Size, m.MimeType)
}
