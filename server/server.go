// Package server implements an in-process SoftLayer API endpoint: service
// registration, a middleware chain, concurrent request handling and graceful
// shutdown. It speaks the XML-RPC or the SOAP wire format and is used to run
// the client against something real in tests and local development.
//
// Request processing pipeline:
//
//	POST {base}/{Service} → ServeHTTP
//	  → Codec.DecodeRequest → Middleware Chain → businessHandler (method lookup) → Codec.EncodeResponse
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/loggo/v2"

	"softlayer-rpc/codec"
	"softlayer-rpc/message"
	"softlayer-rpc/middleware"
	"softlayer-rpc/protocol"
	"softlayer-rpc/registry"
)

var logger = loggo.GetLogger("softlayer.server")

const maxRequestSize = 16 << 20

// Server is an API endpoint that registers services and handles incoming calls.
type Server struct {
	codec codec.Codec

	mu          sync.RWMutex
	serviceMap  map[string]*service     // "SoftLayer_Account" → *service
	middlewares []middleware.Middleware // applied in the order added
	handler     middleware.HandlerFunc  // middleware(middleware(...(businessHandler)))

	httpServer   *http.Server
	wg           sync.WaitGroup // Tracks in-flight requests for graceful shutdown
	shutdown     atomic.Bool
	registry     registry.Registry // nil if not using discovery
	advertiseURL string            // Base URL registered for each service
	cancelLeases context.CancelFunc

	recMu    sync.Mutex
	requests []message.Request
}

// NewServer creates an endpoint speaking the given wire format.
func NewServer(codecType codec.CodecType) *Server {
	s := &Server{
		codec:      codec.GetCodec(codecType),
		serviceMap: make(map[string]*service),
	}
	s.handler = s.businessHandler
	return s
}

// Register exposes rcvr's matching methods under serviceName.
func (svr *Server) Register(serviceName string, rcvr any) error {
	svc, err := NewService(serviceName, rcvr)
	if err != nil {
		return err
	}
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if existing, ok := svr.serviceMap[svc.name]; ok {
		for name, m := range svc.method {
			existing.method[name] = m
		}
		return nil
	}
	svr.serviceMap[svc.name] = svc
	return nil
}

// Handle exposes a single function as service.method.
func (svr *Server) Handle(serviceName, method string, fn MethodFunc) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	name := protocol.QualifiedServiceName(serviceName)
	svc, ok := svr.serviceMap[name]
	if !ok {
		svc = newService(name)
		svr.serviceMap[name] = svc
	}
	svc.add(method, fn)
}

// Use registers a middleware. Middlewares are applied in the order they are added.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	svr.middlewares = append(svr.middlewares, mw)
	// Chain(A, B, C)(handler) → A(B(C(handler)))
	svr.handler = middleware.Chain(svr.middlewares...)(svr.businessHandler)
}

// Requests returns a copy of every call the endpoint has dispatched, in
// arrival order.
func (svr *Server) Requests() []message.Request {
	svr.recMu.Lock()
	defer svr.recMu.Unlock()
	return append([]message.Request(nil), svr.requests...)
}

// Serve listens on address and serves until Shutdown. When reg is non-nil
// every registered service is advertised under advertiseURL.
func (svr *Server) Serve(address, advertiseURL string, reg registry.Registry) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return svr.ServeListener(listener, advertiseURL, reg)
}

// ServeListener is Serve on an existing listener.
func (svr *Server) ServeListener(listener net.Listener, advertiseURL string, reg registry.Registry) error {
	svr.mu.Lock()
	if svr.shutdown.Load() {
		svr.mu.Unlock()
		listener.Close()
		return nil
	}
	httpServer := &http.Server{Handler: svr, ReadHeaderTimeout: 10 * time.Second}
	svr.httpServer = httpServer
	svr.advertiseURL = advertiseURL
	var names []string
	for name := range svr.serviceMap {
		names = append(names, name)
	}
	// Registration happens under the lock so a concurrent Shutdown
	// deregisters everything this call registered.
	if reg != nil {
		ctx, cancel := context.WithCancel(context.Background())
		svr.registry = reg
		svr.cancelLeases = cancel
		for _, name := range names {
			// TTL = 10 seconds, KeepAlive renews until cancelLeases
			err := reg.Register(ctx, name, registry.Endpoint{URL: advertiseURL, Weight: 1}, 10)
			if err != nil {
				logger.Warningf("registering %s at %s: %v", name, advertiseURL, err)
			}
		}
	}
	svr.mu.Unlock()

	err := httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) && svr.shutdown.Load() {
		return nil
	}
	return err
}

// Shutdown performs graceful shutdown:
//  1. Deregister all services (clients stop routing here)
//  2. Stop accepting connections
//  3. Wait for in-flight calls to finish (with timeout)
func (svr *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Set the flag BEFORE reading the serving state: a ServeListener that has
	// not stored its http.Server yet sees it and returns without serving.
	svr.shutdown.Store(true)

	svr.mu.RLock()
	var names []string
	for name := range svr.serviceMap {
		names = append(names, name)
	}
	httpServer := svr.httpServer
	reg, advertiseURL, cancelLeases := svr.registry, svr.advertiseURL, svr.cancelLeases
	svr.mu.RUnlock()

	// Deregister FIRST so clients stop sending new requests
	if reg != nil {
		for _, name := range names {
			if err := reg.Deregister(ctx, name, advertiseURL); err != nil {
				logger.Warningf("deregistering %s: %v", name, err)
			}
		}
		cancelLeases()
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("timeout waiting for ongoing requests to finish: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for ongoing requests to finish")
	}
}

// ServeHTTP handles one call: POST {base}/{Service}.
func (svr *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	svr.wg.Add(1)
	defer svr.wg.Done()

	// Step 1: Decode the body into a Request
	req := message.Request{Service: path.Base(r.URL.Path)}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err == nil {
		err = svr.codec.DecodeRequest(body, &req)
	}
	if err != nil {
		logger.Debugf("undecodable request for %s: %v", req.Service, err)
		svr.write(w, &req, &message.Response{Fault: &message.Fault{
			Code:    "SoftLayer_Exception_Public",
			Message: "Unable to parse request: " + err.Error(),
		}})
		return
	}
	req.Endpoint = svr.baseURL(r)

	// Step 2: Run through the middleware chain → business handler
	svr.mu.RLock()
	handler := svr.handler
	svr.mu.RUnlock()

	resp, err := handler(r.Context(), &req)
	if err != nil {
		var fault *message.Fault
		if !errors.As(err, &fault) {
			fault = &message.Fault{Code: "SoftLayer_Exception", Message: err.Error()}
		}
		resp = &message.Response{Fault: fault}
	}
	if resp == nil {
		resp = &message.Response{}
	}

	// Step 3: Encode and write
	svr.write(w, &req, resp)
}

func (svr *Server) write(w http.ResponseWriter, req *message.Request, resp *message.Response) {
	fault := resp.Fault != nil
	data, err := svr.codec.EncodeResponse(req, resp)
	if err != nil {
		logger.Errorf("encoding response for %s::%s: %v", req.Service, req.Method, err)
		fault = true
		data, err = svr.codec.EncodeResponse(req, &message.Response{Fault: &message.Fault{
			Code:    "SoftLayer_Exception",
			Message: "Unable to encode result",
		}})
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	status := http.StatusOK
	// SOAP 1.1 reports faults with 500; XML-RPC always answers 200
	if fault && svr.codec.Type() == codec.CodecTypeSOAP {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", svr.codec.ContentType())
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logger.Debugf("writing response: %v", err)
	}
}

func (svr *Server) baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + path.Dir(r.URL.Path)
}

// businessHandler dispatches a decoded call to the registered method.
// It is wrapped by the middleware chain and has the HandlerFunc signature.
func (svr *Server) businessHandler(ctx context.Context, req *message.Request) (*message.Response, error) {
	svr.mu.RLock()
	svc, ok := svr.serviceMap[req.Service]
	svr.mu.RUnlock()
	if !ok {
		svr.record(req)
		return nil, &message.Fault{
			Code:    "SoftLayer_Exception_Public",
			Message: fmt.Sprintf("Service does not exist: %s", req.Service),
		}
	}

	svr.mu.RLock()
	method, ok := svc.lookup(req.Method)
	svr.mu.RUnlock()
	if !ok {
		svr.record(req)
		return nil, &message.Fault{
			Code:    "SoftLayer_Exception_Public",
			Message: fmt.Sprintf("Function (\"%s\") is not a valid method for this service.", req.Method),
		}
	}

	// The response wrapper is named after the method as registered
	req.Method = method.name
	svr.record(req)

	result, err := method.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return &message.Response{Result: result}, nil
}

func (svr *Server) record(req *message.Request) {
	svr.recMu.Lock()
	defer svr.recMu.Unlock()
	svr.requests = append(svr.requests, *req)
}
