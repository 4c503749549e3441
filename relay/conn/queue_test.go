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
package conn

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueSendReceiveOrder(t *testing.T) {
	require := require.New(t)

	q := NewQueue(10)
	defer q.Close()

	for i := 0; i < 5; i++ {
		require.NoError(q.Send(TextFrame([]byte(fmt.Sprintf("msg-%d", i)))))
	}
	require.Equal(5, q.Len())

	for i := 0; i < 5; i++ {
		f := <-q.Receiver()
		require.Equal(fmt.Sprintf("msg-%d", i), string(f.Payload))
	}
}

func TestQueueSendBlocksWhenFull(t *testing.T) {
	require := require.New(t)

	q := NewQueue(1)
	defer q.Close()

	require.NoError(q.Send(TextFrame([]byte("first"))))

	sent := make(chan error)
	go func() {
		sent <- q.Send(TextFrame([]byte("second")))
	}()

	select {
	case <-sent:
		t.Fatal("send should block while queue is full")
	case <-time.After(100 * time.Millisecond):
	}

	f := <-q.Receiver()
	require.Equal("first", string(f.Payload))

	select {
	case err := <-sent:
		require.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("send should unblock once queue has capacity")
	}
}

func TestQueueSendAfterCloseError(t *testing.T) {
	require := require.New(t)

	q := NewQueue(10)
	q.Close()

	require.Equal(ErrQueueClosed, q.Send(TextFrame([]byte("too late"))))
}

func TestQueueCloseUnblocksPendingSends(t *testing.T) {
	require := require.New(t)

	q := NewQueue(1)
	require.NoError(q.Send(TextFrame([]byte("first"))))

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- q.Send(PingFrame())
		}()
	}

	q.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		require.Equal(ErrQueueClosed, err)
	}
}

func TestQueueCloseIdempotent(t *testing.T) {
	q := NewQueue(10)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Close()
		}()
	}
	wg.Wait()
}
