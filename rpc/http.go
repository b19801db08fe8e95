package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"zizyhub/core"
	"zizyhub/observability"
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
	codeForbidden      = -32003
	codeStateConflict  = -32009
	codeUnavailable    = -32010
	codeRateLimited    = -32020
	codeResource       = -32022
)

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	Auth           AuthConfig
	RateLimit      RateLimit
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Logger         *slog.Logger
}

// handlerFunc runs one JSON-RPC method. caller is the authenticated account,
// zero for public reads.
type handlerFunc func(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error)

type method struct {
	module string
	auth   bool
	fn     handlerFunc
}

type Server struct {
	node    *core.Node
	cfg     ServerConfig
	logger  *slog.Logger
	auth    *Authenticator
	limiter *RateLimiter
	methods map[string]method
}

func NewServer(node *core.Node, cfg ServerConfig) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc: node must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth, err := NewAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "rpc")),
		auth:    auth,
		limiter: NewRateLimiter(cfg.RateLimit),
		methods: make(map[string]method),
	}
	s.registerNodeMethods()
	s.registerAssetMethods()
	s.registerStakingMethods()
	s.registerCompetitionMethods()
	s.registerRewardHubMethods()
	s.registerStakeRewardsMethods()
	s.registerPopaMethods()
	return s, nil
}

func (s *Server) register(name, module string, auth bool, fn handlerFunc) {
	if _, dup := s.methods[name]; dup {
		panic("rpc: duplicate method " + name)
	}
	s.methods[name] = method{module: module, auth: auth, fn: fn}
}

// Methods lists registered method names.
func (s *Server) Methods() []string {
	out := make([]string, 0, len(s.methods))
	for name := range s.methods {
		out = append(out, name)
	}
	return out
}

// Handler assembles the router: JSON-RPC on POST /, plus health, metrics and
// the event stream.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(CORS(s.cfg.AllowedOrigins))
	r.Use(s.limiter.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "jsonrpc"))
	return r
}

// Serve runs the HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
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
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.node.ChainID(); err != nil {
		http.Error(w, "genesis not applied", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handle decodes a JSON-RPC request and routes it to the registered method.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
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
	if strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("rpc.method", req.Method),
		attribute.String("rpc.module", m.module),
	)

	start := time.Now()
	status := http.StatusOK
	defer func() {
		observability.ModuleMetrics().Observe(m.module, req.Method, status, time.Since(start))
	}()

	var caller common.Address
	if m.auth {
		addr, authErr := s.auth.Caller(r)
		if authErr != nil {
			status = http.StatusUnauthorized
			writeError(w, status, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		caller = addr
	}

	result, err := m.fn(r.Context(), caller, req.Params)
	if err != nil {
		var code int
		var message string
		status, code, message = classify(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("rpc method failed", slog.String("method", req.Method), slog.Any("error", err))
		}
		writeError(w, status, req.ID, code, message, err.Error())
		return
	}
	writeResult(w, req.ID, result)
}

// mutate runs fn as caller's committed operation.
func (s *Server) mutate(ctx context.Context, caller common.Address, fn func() error) error {
	return s.node.Execute(ctx, caller, fn)
}

// view runs fn against committed state and returns its result.
func view[T any](s *Server, fn func() (T, error)) (T, error) {
	var out T
	err := s.node.View(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}
