package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mt5-bridge/internal/client"
	"mt5-bridge/internal/connection"
	"mt5-bridge/internal/terminal"
	"mt5-bridge/internal/tools"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	now := time.Date(2025, 1, 8, 12, 30, 0, 0, time.UTC)
	sim := terminal.NewSimulator(terminal.SimulatorConfig{Now: func() time.Time { return now }})
	c := client.New(sim, client.Options{
		Connection:        connection.DefaultConfig(),
		StrictValidation:  true,
		Logger:            zerolog.Nop(),
		ConnectionOptions: []connection.Option{connection.WithPathFinder(&connection.PathFinder{})},
	})
	require.NoError(t, c.Connect(context.Background()))

	reg, err := tools.New(c)
	require.NoError(t, err)
	return NewServer(reg, Options{Version: "test", Logger: zerolog.Nop()})
}

type rpcReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func roundTrip(t *testing.T, s *Server, msg string) rpcReply {
	t.Helper()
	resp := s.HandleMessage(context.Background(), []byte(msg))
	require.NotNil(t, resp)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var reply rpcReply
	require.NoError(t, json.Unmarshal(data, &reply))
	return reply
}

func TestInitialize(t *testing.T) {
	s := newServer(t)

	reply := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"probe","version":"1"}}}`)
	require.Nil(t, reply.Error)
	assert.Equal(t, "1", string(reply.ID))

	var result initializeResult
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.Equal(t, "2024-11-05", result.ProtocolVersion)
	assert.Equal(t, "mt5-bridge", result.ServerInfo.Name)
	assert.NotNil(t, result.Capabilities.Tools)

	reply = roundTrip(t, s, `{"jsonrpc":"2.0","id":"a","method":"initialize","params":{"protocolVersion":"1999-01-01"}}`)
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
}

func TestProtocolErrors(t *testing.T) {
	s := newServer(t)

	reply := roundTrip(t, s, `{not json`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeParseError, reply.Error.Code)
	assert.Equal(t, "null", string(reply.ID))

	reply = roundTrip(t, s, `{"jsonrpc":"1.0","id":2,"method":"ping"}`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeInvalidRequest, reply.Error.Code)

	reply = roundTrip(t, s, `{"jsonrpc":"2.0","id":3,"method":"resources/list"}`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeMethodNotFound, reply.Error.Code)

	reply = roundTrip(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"no_such_tool"}}`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeInvalidParams, reply.Error.Code)

	assert.Nil(t, s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
	assert.Nil(t, s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"unknown/notification"}`)))
}

func TestToolsList(t *testing.T) {
	s := newServer(t)

	reply := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Nil(t, reply.Error)

	var result listToolsResult
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	require.Len(t, result.Tools, 35)

	byName := make(map[string]ToolInfo, len(result.Tools))
	for _, info := range result.Tools {
		byName[info.Name] = info
		assert.NotEmpty(t, info.Description, info.Name)
		assert.True(t, json.Valid(info.InputSchema), info.Name)
	}
	require.Contains(t, byName, "get_symbols")
	assert.True(t, byName["get_symbols"].Annotations.ReadOnlyHint)
	require.Contains(t, byName, "close_all_positions")
	assert.True(t, byName["close_all_positions"].Annotations.DestructiveHint)
}

func TestToolsCall(t *testing.T) {
	s := newServer(t)

	reply := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_symbol_price","arguments":{"symbol_name":"EURUSD"}}}`)
	require.Nil(t, reply.Error)
	var result CallToolResult
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.Contains(t, result.Content[0].Text, "1.085")

	reply = roundTrip(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_symbol_info","arguments":{"symbol_name":"NOPE"}}}`)
	require.Nil(t, reply.Error)
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.True(t, result.IsError)
	assert.True(t, strings.HasPrefix(result.Content[0].Text, "Error: "))

	reply = roundTrip(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"place_market_order","arguments":{"symbol":"EURUSD","volume":0.1,"order_type":"BUY"}}}`)
	require.Nil(t, reply.Error)
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Position ID: 100001")

	reply = roundTrip(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"close_position","arguments":{"ticket":999}}}`)
	require.Nil(t, reply.Error)
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "NOT_FOUND")
}

func TestServeStdio(t *testing.T) {
	s := newServer(t)

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_symbols","arguments":{"group":"*JPY*"}}}`,
	}, "\n"))
	var out strings.Builder

	require.NoError(t, s.ServeStdio(context.Background(), in, &out))

	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	var replies []rpcReply
	for scanner.Scan() {
		var reply rpcReply
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &reply))
		replies = append(replies, reply)
	}
	require.Len(t, replies, 3)
	assert.Equal(t, "1", string(replies[0].ID))
	assert.Equal(t, "2", string(replies[1].ID))
	assert.JSONEq(t, `{}`, string(replies[1].Result))

	var result CallToolResult
	require.NoError(t, json.Unmarshal(replies[2].Result, &result))
	assert.Contains(t, result.Content[0].Text, "USDJPY")
	assert.NotContains(t, result.Content[0].Text, "EURUSD")
}

func TestServeStdioStopsOnCancel(t *testing.T) {
	s := newServer(t)
	in, feed := io.Pipe()
	t.Cleanup(func() { feed.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out strings.Builder
	go func() { done <- s.ServeStdio(ctx, in, &out) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ServeStdio still blocked on input after cancel")
	}
}

func post(t *testing.T, url, session, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPTransport(t *testing.T) {
	s := newServer(t)
	ts := httptest.NewServer(s.NewHTTPHandler("/mcp"))
	t.Cleanup(ts.Close)
	url := ts.URL + "/mcp"

	resp := post(t, url, "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, url, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := resp.Header.Get(SessionHeader)
	require.NotEmpty(t, session)

	resp = post(t, url, "bogus", `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, url, session, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = post(t, url, session, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_account_info"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reply rpcReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	require.Nil(t, reply.Error)
	var result CallToolResult
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.Contains(t, result.Content[0].Text, "balance")

	resp = post(t, url, session, `{oops`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	get, err := http.Get(url)
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)

	del, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	del.Header.Set(SessionHeader, session)
	delResp, err := http.DefaultClient.Do(del)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	resp = post(t, url, session, `{"jsonrpc":"2.0","id":4,"method":"ping"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPSessionIdleExpiry(t *testing.T) {
	s := newServer(t)
	var clock atomic.Int64
	clock.Store(time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC).UnixNano())
	tr := newHTTPTransport(s, func() time.Time { return time.Unix(0, clock.Load()).UTC() }, time.Minute)
	ts := httptest.NewServer(tr.router("/mcp"))
	t.Cleanup(ts.Close)
	url := ts.URL + "/mcp"

	initialize := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`
	active := post(t, url, "", initialize).Header.Get(SessionHeader)
	idle := post(t, url, "", initialize).Header.Get(SessionHeader)
	require.NotEmpty(t, active)
	require.NotEmpty(t, idle)

	clock.Add(int64(45 * time.Second))
	resp := post(t, url, active, `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	clock.Add(int64(30 * time.Second))
	resp = post(t, url, active, `{"jsonrpc":"2.0","id":3,"method":"ping"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "activity keeps a session alive")
	resp = post(t, url, idle, `{"jsonrpc":"2.0","id":4,"method":"ping"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	tr.mu.Lock()
	assert.Len(t, tr.sessions, 1)
	tr.mu.Unlock()
}
