package gateway_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NethermindEth/feedermirror/db/pebble"
	"github.com/NethermindEth/feedermirror/gateway"
	"github.com/NethermindEth/feedermirror/storage"
	"github.com/NethermindEth/feedermirror/sync"
	"github.com/NethermindEth/feedermirror/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandler(t *testing.T) (*storage.Store, *sync.HeadTracker, *sync.HeadTracker, *httptest.Server) {
	t.Helper()
	store := storage.New(pebble.NewMemTest(t))
	blockHead := new(sync.HeadTracker)
	stateHead := new(sync.HeadTracker)
	handler := gateway.New(store, blockHead, stateHead, utils.NewNopZapLogger())
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return store, blockHead, stateHead, srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	return res.StatusCode, string(body)
}

func TestGetBlock(t *testing.T) {
	store, _, _, srv := setupHandler(t)

	payload := `{"block_number":2,"transactions":[]}`
	require.NoError(t, store.Put(storage.BlockStream.Key(2), []byte(payload)))

	t.Run("stored block is served verbatim", func(t *testing.T) {
		status, body := get(t, srv.URL+"/feeder_gateway/get_block?blockNumber=2")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, payload, body)
	})

	t.Run("unknown block is not found", func(t *testing.T) {
		status, _ := get(t, srv.URL+"/feeder_gateway/get_block?blockNumber=99")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("missing parameter", func(t *testing.T) {
		status, _ := get(t, srv.URL+"/feeder_gateway/get_block")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("malformed parameter", func(t *testing.T) {
		status, _ := get(t, srv.URL+"/feeder_gateway/get_block?blockNumber=abc")
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestGetStateUpdate(t *testing.T) {
	store, _, _, srv := setupHandler(t)

	payload := `{"state_diff":{}}`
	require.NoError(t, store.Put(storage.StateUpdateStream.Key(5), []byte(payload)))

	status, body := get(t, srv.URL+"/feeder_gateway/get_state_update?blockNumber=5")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, payload, body)

	status, _ = get(t, srv.URL+"/feeder_gateway/get_state_update?blockNumber=6")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetClassByHash(t *testing.T) {
	store, _, _, srv := setupHandler(t)

	payload := `{"program":"aa"}`
	require.NoError(t, store.Put(storage.ClassKey("0xAA"), []byte(payload)))

	status, body := get(t, srv.URL+"/feeder_gateway/get_class_by_hash?classHash=0xAA")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, payload, body)

	status, _ = get(t, srv.URL+"/feeder_gateway/get_class_by_hash?classHash=0xBB")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, srv.URL+"/feeder_gateway/get_class_by_hash")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestIndex(t *testing.T) {
	_, blockHead, stateHead, srv := setupHandler(t)

	status, body := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "blocks synced: none, state updates synced: none\n", body)

	blockHead.Advance(3)
	stateHead.Advance(1)

	_, body = get(t, srv.URL+"/")
	assert.Equal(t, "blocks synced: 3, state updates synced: 1\n", body)
}

func TestUnknownPath(t *testing.T) {
	_, _, _, srv := setupHandler(t)
	status, _ := get(t, srv.URL+"/feeder_gateway/get_transaction")
	assert.Equal(t, http.StatusNotFound, status)
}
