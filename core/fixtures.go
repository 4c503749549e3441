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

import (
	"fmt"
	"math/rand"

	"github.com/relayr/relayr/utils/randutil"
	"github.com/satori/go.uuid"
)

// PeerIDFixture returns a randomly generated peer id.
func PeerIDFixture() string {
	return uuid.NewV4().String()
}

// FileMetadataFixture returns a randomly generated FileMetadata.
func FileMetadataFixture() *FileMetadata {
	name := fmt.Sprintf("%s.bin", randutil.Text(8))
	return NewFileMetadata(name, uint64(rand.Intn(1<<20)+1), "application/octet-stream")
}
