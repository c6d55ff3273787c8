package web

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceOpenEditQuery(t *testing.T) {
	ws := NewWorkspace()
	res, err := ws.Open("data.json", "", []byte("[1, 2]\n"))
	require.NoError(t, err)
	assert.Equal(t, "json", res.Language)
	assert.Equal(t, "(document (array (number) (number)))", res.Tree)
	assert.False(t, res.HasError)

	ch, err := ws.Edit("data.json", 5, 5, []byte(", {}"))
	require.NoError(t, err)
	assert.Equal(t, 1, ch.Version)
	assert.NotEmpty(t, ch.Changed)

	tree, err := ws.Tree("data.json")
	require.NoError(t, err)
	assert.Equal(t, "(document (array (number) (number) (object)))", tree.Tree)

	caps, err := ws.Query("data.json", "(number) @n", nil)
	require.NoError(t, err)
	require.Len(t, caps, 2)
	assert.Equal(t, "1", caps[0].Text)
	assert.Equal(t, "n", caps[1].Name)
	assert.Equal(t, uint32(4), caps[1].Range.StartByte)

	caps, err = ws.Query("data.json", "(number) @n", &[2]uint32{3, 10})
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, "2", caps[0].Text)
}

func TestWorkspaceErrors(t *testing.T) {
	ws := NewWorkspace()
	_, err := ws.Open("notes.txt", "", []byte("hello"))
	assert.ErrorIs(t, err, ErrUnknownLanguage)
	_, err = ws.Open("x", "cobol", nil)
	assert.ErrorIs(t, err, ErrUnknownLanguage)

	_, err = ws.Tree("missing.json")
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = ws.Open("a.json", "", []byte("[]"))
	require.NoError(t, err)
	_, err = ws.Edit("a.json", 1, 9, nil)
	assert.ErrorIs(t, err, errInvalidParams)
	_, err = ws.Query("a.json", "(nope) @x", nil)
	assert.ErrorIs(t, err, errInvalidParams)

	require.NoError(t, ws.Close("a.json"))
	assert.ErrorIs(t, ws.Close("a.json"), ErrNotOpen)
}

func TestWorkspaceRoles(t *testing.T) {
	ws := NewWorkspace()
	src := "{\n  \"a\": [\n    1\n  ]\n}\n"
	_, err := ws.Open("cfg", "json", []byte(src))
	require.NoError(t, err)

	lights, err := ws.Highlight("cfg")
	require.NoError(t, err)
	byText := make(map[string]string)
	for _, h := range lights {
		byText[src[h.StartByte:h.EndByte]] = h.Capture
	}
	assert.Equal(t, "property", byText[`"a"`])
	assert.Equal(t, "number", byText["1"])

	folds, err := ws.Folds("cfg")
	require.NoError(t, err)
	require.NotEmpty(t, folds)
	assert.Equal(t, 0, folds[0].StartLine)
	assert.Equal(t, 4, folds[0].EndLine)

	ind, err := ws.Indent("cfg", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, ind.Level)
	assert.Equal(t, "    ", ind.Indent)

	_, err = ws.Indent("cfg", 99)
	assert.ErrorIs(t, err, errInvalidParams)
}

func TestWorkspaceLanguages(t *testing.T) {
	names := make(map[string]LanguageInfo)
	for _, l := range NewWorkspace().Languages() {
		names[l.Name] = l
	}
	require.Contains(t, names, "json")
	require.Contains(t, names, "hare")
	assert.Equal(t, "dfa", names["json"].Backend)
	assert.Contains(t, names["hare"].Roles, "highlights")
}

type wsMessage struct {
	ID     *int            `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, id int, method string, params any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"id": id, "method": method, "params": params}))
}

func read(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readResponse skips notifications until the response with id arrives.
func readResponse(t *testing.T, conn *websocket.Conn, id int) wsMessage {
	t.Helper()
	for {
		msg := read(t, conn)
		if msg.ID != nil && *msg.ID == id {
			return msg
		}
	}
}

func TestServerRPC(t *testing.T) {
	srv := httptest.NewServer(NewServer(NewWorkspace()))
	defer srv.Close()
	editor := dial(t, srv)
	watcher := dial(t, srv)

	send(t, editor, 1, "open", map[string]any{"uri": "a.json", "text": "[1]"})
	msg := readResponse(t, editor, 1)
	require.Nil(t, msg.Error)
	var opened TreeResult
	require.NoError(t, json.Unmarshal(msg.Result, &opened))
	assert.Equal(t, "(document (array (number)))", opened.Tree)

	// Make sure the watcher is registered before the edit is broadcast.
	send(t, watcher, 1, "languages", nil)
	readResponse(t, watcher, 1)

	send(t, editor, 2, "edit", map[string]any{"uri": "a.json", "start": 2, "oldEnd": 2, "text": ", 2"})
	msg = readResponse(t, editor, 2)
	require.Nil(t, msg.Error)
	var changed ChangeResult
	require.NoError(t, json.Unmarshal(msg.Result, &changed))
	assert.Equal(t, 1, changed.Version)

	note := read(t, watcher)
	assert.Nil(t, note.ID)
	assert.Equal(t, "didChange", note.Method)
	var broadcast ChangeResult
	require.NoError(t, json.Unmarshal(note.Params, &broadcast))
	assert.Equal(t, "a.json", broadcast.URI)
	assert.Equal(t, 1, broadcast.Version)

	send(t, editor, 3, "tree", map[string]any{"uri": "a.json"})
	msg = readResponse(t, editor, 3)
	var tree TreeResult
	require.NoError(t, json.Unmarshal(msg.Result, &tree))
	assert.Equal(t, "(document (array (number) (number)))", tree.Tree)
}

func TestServerRPCErrors(t *testing.T) {
	srv := httptest.NewServer(NewServer(NewWorkspace()))
	defer srv.Close()
	conn := dial(t, srv)

	tests := []struct {
		method string
		params any
		code   int
	}{
		{"frobnicate", nil, codeMethodNotFound},
		{"open", nil, codeInvalidParams},
		{"edit", "not an object", codeInvalidParams},
		{"tree", map[string]any{"uri": "nope"}, codeServer},
	}
	for i, tt := range tests {
		send(t, conn, i+1, tt.method, tt.params)
		msg := readResponse(t, conn, i+1)
		require.NotNil(t, msg.Error, tt.method)
		assert.Equal(t, tt.code, msg.Error.Code, tt.method)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	msg := read(t, conn)
	require.NotNil(t, msg.Error)
	assert.Equal(t, codeParse, msg.Error.Code)
}

func TestServerStatic(t *testing.T) {
	srv := httptest.NewServer(NewServer(NewWorkspace()))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
