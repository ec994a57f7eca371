// go-stpv3
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-stpv3.
//
// go-stpv3 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-stpv3 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-stpv3; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZaparooProject/go-stpv3"
	testutil "github.com/ZaparooProject/go-stpv3/internal/testing"
	"github.com/ZaparooProject/go-stpv3/polling"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(t *testing.T, tags ...*testutil.VirtualTag) (*Server, *stpv3.Reader, *testutil.VirtualReader) {
	t.Helper()

	vr := testutil.NewVirtualReader()
	for _, tag := range tags {
		vr.AddTag(tag)
	}
	mock := stpv3.NewSimulatedTransport(vr)
	reader, err := stpv3.New(mock,
		stpv3.WithTimeout(200*time.Millisecond),
		stpv3.WithInventoryTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = reader.Close()
		_ = mock.Close()
	})

	s, err := New(reader, Config{
		Addr: "127.0.0.1:0",
		Polling: &polling.Config{
			PollInterval:      10 * time.Millisecond,
			PollTimeout:       500 * time.Millisecond,
			TagRemovalTimeout: 100 * time.Millisecond,
			IdleAfter:         time.Minute,
			IdleInterval:      time.Second,
		},
		WriteTimeout: time.Second,
	})
	require.NoError(t, err)
	return s, reader, vr
}

func testTag(tid []byte) *testutil.VirtualTag {
	return testutil.NewVirtualGen2Tag(tid, []byte{0x30, 0x00, 0x12, 0x34}, 4)
}

func getJSON(t *testing.T, method, url string, out any) int {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, url, http.NoBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{})
	require.Error(t, err)

	s, _, _ := newTestBridge(t)
	assert.Equal(t, "127.0.0.1:0", s.config.Addr)
	assert.Empty(t, s.Addr())

	defaults, err := New(s.reader, Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, defaults.config.Addr)
	assert.Equal(t, 5*time.Second, defaults.config.WriteTimeout)
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	s, reader, _ := newTestBridge(t, testTag(testutil.TestTID1), testTag(testutil.TestTID2))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	t.Run("Reader", func(t *testing.T) {
		want, err := reader.Info(context.Background())
		require.NoError(t, err)

		var got stpv3.ReaderInfo
		require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+readerRoute, &got))
		assert.Equal(t, *want, got)
	})

	t.Run("Param", func(t *testing.T) {
		var got ParamDTO
		require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+apiBase+"/params/0x0011", &got))
		assert.Equal(t, uint16(0x0011), got.Address)
		assert.Equal(t, "05", got.Value)
		assert.Equal(t, "current", got.Store)

		require.Equal(t, http.StatusOK,
			getJSON(t, http.MethodGet, srv.URL+apiBase+"/params/18?store=default", &got))
		assert.Equal(t, "FA", got.Value)
		assert.Equal(t, "default", got.Store)

		require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+apiBase+"/params/retry_count", &got))
		assert.Equal(t, "RETRY_COUNT", got.Name)
	})

	t.Run("Param_Errors", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, getJSON(t, http.MethodGet, srv.URL+apiBase+"/params/0x0009", nil))
		assert.Equal(t, http.StatusBadRequest, getJSON(t, http.MethodGet, srv.URL+apiBase+"/params/zzz", nil))
	})

	t.Run("Inventory", func(t *testing.T) {
		var tags []TagDTO
		require.Equal(t, http.StatusOK, getJSON(t, http.MethodPost, srv.URL+inventoryRoot, &tags))
		require.Len(t, tags, 2)
		assert.Equal(t, stpv3.NewTag(stpv3.TagTypeGen2, testutil.TestTID1).TIDHex(), tags[0].TID)
		assert.Equal(t, uint16(stpv3.TagTypeGen2), tags[0].TypeCode)

		require.Equal(t, http.StatusOK,
			getJSON(t, http.MethodPost, srv.URL+inventoryRoot+"?type=EM_AUTO_DETECT", &tags))
		assert.Empty(t, tags)

		assert.Equal(t, http.StatusBadRequest,
			getJSON(t, http.MethodPost, srv.URL+inventoryRoot+"?type=zzz", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, getJSON(t, http.MethodGet, srv.URL+inventoryRoot, nil))
	})

	t.Run("Tags_Before_Start", func(t *testing.T) {
		var tags []TagDTO
		require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+tagsRoute, &tags))
		assert.Empty(t, tags)
	})
}

// readEvent reads events until one of the wanted type arrives
func readEvent(t *testing.T, conn *websocket.Conn, kind string) *Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == kind {
			return &ev
		}
	}
}

func TestWebSocketEvents(t *testing.T) {
	t.Parallel()

	s, _, vr := newTestBridge(t)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	require.Error(t, s.Start(context.Background()))

	url := "ws://" + s.Addr() + wsRoute
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()

	hello := readEvent(t, conn, EventHello)
	assert.NotEmpty(t, hello.ClientID)
	assert.Empty(t, hello.Tags)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	vr.AddTag(testTag(testutil.TestTID3))
	detected := readEvent(t, conn, EventTagDetected)
	require.NotNil(t, detected.Tag)
	wantTID := stpv3.NewTag(stpv3.TagTypeGen2, testutil.TestTID3).TIDHex()
	assert.Equal(t, wantTID, detected.Tag.TID)
	assert.NotEmpty(t, detected.ID)

	require.NoError(t, conn.WriteJSON(Request{ID: "q1", Type: EventPresent}))
	present := readEvent(t, conn, EventPresent)
	assert.Equal(t, "q1", present.ID)
	require.Len(t, present.Tags, 1)
	assert.Equal(t, wantTID, present.Tags[0].TID)

	require.NoError(t, conn.WriteJSON(Request{Type: "bogus"}))
	failed := readEvent(t, conn, EventError)
	assert.Contains(t, failed.Error, "bogus")

	vr.RemoveTag(testutil.TestTID3)
	removed := readEvent(t, conn, EventTagRemoved)
	require.NotNil(t, removed.Tag)
	assert.Equal(t, wantTID, removed.Tag.TID)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Zero(t, s.ClientCount())
	assert.Empty(t, s.Addr())
}

func TestRun(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("bridge did not stop")
	}
}
