// Package web serves live parse sessions over a websocket. Clients open
// documents, send edits and run queries with JSON-RPC style messages;
// every edit is re-parsed incrementally and the changed ranges are
// broadcast to all connected clients.
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"
)

//go:embed static/*
var staticFS embed.FS

var log = commonlog.GetLogger("arbor.web")

const (
	codeParse          = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServer         = -32000
)

// Server provides the live parse HTTP + WebSocket server.
type Server struct {
	ws       *Workspace
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  []*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type rpcRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     any       `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcNotification struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// NewServer creates a web server backed by ws.
func NewServer(ws *Workspace) *Server {
	return &Server{
		ws: ws,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" {
		s.handleWebSocket(w, r)
		return
	}
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		http.Error(w, "static files unavailable", http.StatusInternalServerError)
		return
	}
	http.FileServer(http.FS(sub)).ServeHTTP(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warningf("websocket upgrade: %v", err)
		return
	}
	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients = append(s.clients, client)
	s.mu.Unlock()
	log.Debugf("client connected from %s", r.RemoteAddr)

	defer func() {
		conn.Close()
		s.mu.Lock()
		for i, c := range s.clients {
			if c == client {
				s.clients = append(s.clients[:i], s.clients[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		log.Debugf("client %s disconnected", r.RemoteAddr)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var resp rpcResponse
		var req rpcRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			resp = rpcResponse{Error: &rpcError{Code: codeParse, Message: err.Error()}}
		} else {
			resp = s.handleRPC(req)
		}
		data, err := json.Marshal(resp)
		if err != nil {
			log.Errorf("encode %s response: %v", req.Method, err)
			continue
		}
		if err := client.write(data); err != nil {
			return
		}
	}
}

type handler func(s *Server, params json.RawMessage) (any, error)

var handlers = map[string]handler{
	"open":      (*Server).rpcOpen,
	"edit":      (*Server).rpcEdit,
	"replace":   (*Server).rpcReplace,
	"close":     (*Server).rpcClose,
	"tree":      (*Server).rpcTree,
	"query":     (*Server).rpcQuery,
	"highlight": (*Server).rpcHighlight,
	"folds":     (*Server).rpcFolds,
	"indent":    (*Server).rpcIndent,
	"languages": (*Server).rpcLanguages,
}

// errInvalidParams marks errors decoding request parameters.
var errInvalidParams = errors.New("invalid params")

func (s *Server) handleRPC(req rpcRequest) rpcResponse {
	h, ok := handlers[req.Method]
	if !ok {
		return rpcResponse{
			ID:    req.ID,
			Error: &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
	result, err := h(s, req.Params)
	if err != nil {
		code := codeServer
		if errors.Is(err, errInvalidParams) {
			code = codeInvalidParams
		}
		log.Debugf("%s: %v", req.Method, err)
		return rpcResponse{ID: req.ID, Error: &rpcError{Code: code, Message: err.Error()}}
	}
	return rpcResponse{ID: req.ID, Result: result}
}

func decode(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return fmt.Errorf("%w: missing params", errInvalidParams)
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

type uriParams struct {
	URI string `json:"uri"`
}

func (s *Server) rpcOpen(params json.RawMessage) (any, error) {
	var p struct {
		URI      string `json:"uri"`
		Language string `json:"language,omitempty"`
		Text     string `json:"text"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.ws.Open(p.URI, p.Language, []byte(p.Text))
}

func (s *Server) rpcEdit(params json.RawMessage) (any, error) {
	var p struct {
		URI    string `json:"uri"`
		Start  uint32 `json:"start"`
		OldEnd uint32 `json:"oldEnd"`
		Text   string `json:"text"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	ch, err := s.ws.Edit(p.URI, p.Start, p.OldEnd, []byte(p.Text))
	if err != nil {
		return nil, err
	}
	s.Broadcast("didChange", ch)
	return ch, nil
}

func (s *Server) rpcReplace(params json.RawMessage) (any, error) {
	var p struct {
		URI  string `json:"uri"`
		Text string `json:"text"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	ch, err := s.ws.Replace(p.URI, []byte(p.Text))
	if err != nil {
		return nil, err
	}
	s.Broadcast("didChange", ch)
	return ch, nil
}

func (s *Server) rpcClose(params json.RawMessage) (any, error) {
	var p uriParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := s.ws.Close(p.URI); err != nil {
		return nil, err
	}
	return map[string]string{"status": "closed"}, nil
}

func (s *Server) rpcTree(params json.RawMessage) (any, error) {
	var p uriParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.ws.Tree(p.URI)
}

func (s *Server) rpcQuery(params json.RawMessage) (any, error) {
	var p struct {
		URI   string  `json:"uri"`
		Query string  `json:"query"`
		Start *uint32 `json:"start,omitempty"`
		End   *uint32 `json:"end,omitempty"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	var window *[2]uint32
	if p.Start != nil || p.End != nil {
		w := [2]uint32{0, ^uint32(0)}
		if p.Start != nil {
			w[0] = *p.Start
		}
		if p.End != nil {
			w[1] = *p.End
		}
		window = &w
	}
	return s.ws.Query(p.URI, p.Query, window)
}

func (s *Server) rpcHighlight(params json.RawMessage) (any, error) {
	var p uriParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.ws.Highlight(p.URI)
}

func (s *Server) rpcFolds(params json.RawMessage) (any, error) {
	var p uriParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.ws.Folds(p.URI)
}

func (s *Server) rpcIndent(params json.RawMessage) (any, error) {
	var p struct {
		URI  string `json:"uri"`
		Line int    `json:"line"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.ws.Indent(p.URI, p.Line)
}

func (s *Server) rpcLanguages(json.RawMessage) (any, error) {
	return s.ws.Languages(), nil
}

// Broadcast sends a notification to all connected WebSocket clients.
func (s *Server) Broadcast(method string, params any) {
	msg, err := json.Marshal(rpcNotification{Method: method, Params: params})
	if err != nil {
		log.Errorf("encode %s notification: %v", method, err)
		return
	}
	s.mu.Lock()
	clients := append([]*wsClient(nil), s.clients...)
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.write(msg); err != nil {
			log.Debugf("notify %s: %v", method, err)
		}
	}
}
