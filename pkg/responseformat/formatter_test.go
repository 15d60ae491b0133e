package responseformat

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Sample string    `json:"sample"`
	Values []float64 `json:"values"`
}

func TestWriteResponseJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fits", nil)

	require.NoError(t, NewFormatter().WriteResponse(rec, req, payload{Sample: "a", Values: []float64{1, 2}}, map[string]string{"X-Test": "1"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var got payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "a", got.Sample)
}

func TestWriteResponseMsgPack(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fits?format=msgpack", nil)

	require.NoError(t, NewFormatter().WriteStatus(rec, req, http.StatusCreated, payload{Sample: "b", Values: []float64{3}}, nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, MsgPackContentType, rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "b", got["sample"])
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, NewFormatter().WriteError(rec, req, http.StatusBadRequest, errors.New("bad std")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"bad std"}`, rec.Body.String())
}

func TestDecodeRequest(t *testing.T) {
	f := NewFormatter()

	var got payload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sample":"j","values":[1.5]}`))
	require.NoError(t, f.DecodeRequest(req, &got))
	assert.Equal(t, payload{Sample: "j", Values: []float64{1.5}}, got)

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	require.NoError(t, enc.Encode(payload{Sample: "m", Values: []float64{2.5}}))
	req = httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", MsgPackContentType)
	got = payload{}
	require.NoError(t, f.DecodeRequest(req, &got))
	assert.Equal(t, payload{Sample: "m", Values: []float64{2.5}}, got)

	got = payload{Sample: "keep"}
	req = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	require.NoError(t, f.DecodeRequest(req, &got))
	assert.Equal(t, "keep", got.Sample)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.Error(t, f.DecodeRequest(req, &got))
}
