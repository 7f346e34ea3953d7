package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"nftlend/core/events"
	"nftlend/core/types"
	"nftlend/ledger"
	"nftlend/native/common"
	"nftlend/native/lending"
	"nftlend/observability/metrics"
	"nftlend/storage"
	"nftlend/token"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the lending engine over JSON-RPC. Mutating methods execute
// against a write overlay that commits only on success, so a failed
// operation leaves no partial state behind.
type Server struct {
	db        storage.Database
	pauses    common.PauseView
	log       *slog.Logger
	authToken string
	metrics   *metrics.LendingMetrics
	params    lending.Params
	nowFn     func() int64

	// writeMu serialises mutating operations so overlay commits do not
	// interleave.
	writeMu sync.Mutex
}

// ServerOption customises a Server at construction time.
type ServerOption func(*Server)

// WithPauses wires administrative pause switches into every request engine.
func WithPauses(p common.PauseView) ServerOption {
	return func(s *Server) { s.pauses = p }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithParams carries pool parameter overrides applied at initialization.
func WithParams(params lending.Params) ServerOption {
	return func(s *Server) { s.params = params }
}

// WithNowFunc overrides the engine time source. Intended for tests.
func WithNowFunc(now func() int64) ServerOption {
	return func(s *Server) { s.nowFn = now }
}

// NewServer builds a server over the given backing store. The bearer token
// for mutating methods is read from LEND_RPC_TOKEN.
func NewServer(db storage.Database, opts ...ServerOption) *Server {
	s := &Server{
		db:        db,
		log:       slog.Default(),
		authToken: strings.TrimSpace(os.Getenv("LEND_RPC_TOKEN")),
		metrics:   metrics.Lending(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start serves the JSON-RPC endpoint on addr until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return http.ListenAndServe(addr, mux)
}

// Handler returns the request handler for tests and embedding.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(&RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(&RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = "request body too large"
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	handler, ok := rpcMethods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	if handler.mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	s.dispatch(w, req, handler)
}

type methodHandler struct {
	mutating bool
	run      func(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError)
}

func (s *Server) dispatch(w http.ResponseWriter, req *RPCRequest, handler methodHandler) {
	start := time.Now()
	var (
		result interface{}
		rpcErr *RPCError
	)
	if handler.mutating {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		overlay := storage.NewOverlay(s.db)
		result, rpcErr = handler.run(s, overlay, req.Params)
		if rpcErr != nil {
			overlay.Discard()
		} else if err := overlay.Commit(); err != nil {
			rpcErr = &RPCError{Code: codeServerError, Message: "failed to persist state", Data: err.Error()}
		}
	} else {
		result, rpcErr = handler.run(s, s.db, req.Params)
	}
	s.metrics.ObserveOperation(req.Method, time.Since(start).Seconds(), errFromRPC(rpcErr))

	if rpcErr != nil {
		s.log.Warn("rpc request failed", "method", req.Method, "code", rpcErr.Code, "message", rpcErr.Message)
		writeError(w, httpStatusFor(rpcErr.Code), req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) engineFor(db storage.Database) *lending.Engine {
	engine := lending.NewEngine(ledger.New(db), token.New(db))
	engine.SetPauses(s.pauses)
	engine.SetEmitter(logEmitter{log: s.log})
	if s.nowFn != nil {
		engine.SetNowFunc(s.nowFn)
	}
	return engine
}

// logEmitter surfaces protocol events on the structured log. Indexers can
// tail the log stream; no separate event bus is run in-process.
type logEmitter struct {
	log *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	if l.log == nil || evt == nil {
		return
	}
	attrs := []any{slog.String("event", evt.EventType())}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	l.log.Info("protocol event", attrs...)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func httpStatusFor(code int) int {
	switch code {
	case codeUnauthorized:
		return http.StatusUnauthorized
	case codeMethodNotFound:
		return http.StatusNotFound
	case codeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func errFromRPC(rpcErr *RPCError) error {
	if rpcErr == nil {
		return nil
	}
	return errors.New(rpcErr.Message)
}
