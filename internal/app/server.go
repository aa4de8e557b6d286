package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	intrnl "quickchat/internal"
	"quickchat/internal/storage"
)

// ServerHandle represents a running HTTP/WebSocket server instance.
type ServerHandle struct {
	addr   string
	server *http.Server
	store  *storage.Store
	done   chan struct{}
	err    error
}

// Addr returns the actual listen address (after the OS allocated a port).
func (h *ServerHandle) Addr() string {
	return h.addr
}

// Stop triggers a graceful shutdown with the provided context deadline.
func (h *ServerHandle) Stop(ctx context.Context) error {
	if h == nil || h.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	return h.server.Shutdown(ctx)
}

// Wait blocks until the server exits.
func (h *ServerHandle) Wait() error {
	if h == nil {
		return nil
	}
	<-h.done
	return h.err
}

// RunServer opens the mongo store, wires the hub and handlers, and starts
// serving in the background. Call Stop/Wait to manage its lifecycle. A store
// that is unreachable at startup is logged, not fatal: individual requests
// fail on their own afterwards.
func RunServer(ctx context.Context, cfg ServerConfig) (*ServerHandle, error) {
	if cfg.UploadDir == "" {
		cfg.UploadDir = DefaultUploadDir
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	store, err := storage.NewStore(context.Background(), cfg.MongoURI, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		log.Printf("store unreachable at startup: %v", err)
	} else if err := store.EnsureIndexes(pingCtx); err != nil {
		log.Printf("ensure indexes: %v", err)
	}

	presence := intrnl.NewPresenceTable()
	metrics := intrnl.NewMetrics()
	hub := intrnl.NewHub(store, presence, metrics)
	go hub.Run()

	uploads := intrnl.NewUploadHandler(cfg.UploadDir, cfg.MaxFileSize, metrics)
	server := intrnl.NewServer(store, hub, metrics, uploads)

	mux := http.NewServeMux()
	registerHandlers(mux, server, uploads)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: intrnl.CORSMiddleware(mux),
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = store.Close(context.Background())
		return nil, fmt.Errorf("listen: %w", err)
	}

	handle := &ServerHandle{
		addr:   listener.Addr().String(),
		server: httpServer,
		store:  store,
		done:   make(chan struct{}),
	}

	go func() {
		if ctx == nil {
			return
		}
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server shutdown error: %v", err)
		}
	}()

	go handle.serve(listener)

	return handle, nil
}

func (h *ServerHandle) serve(listener net.Listener) {
	defer close(h.done)
	err := h.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.store.Close(closeCtx); err != nil {
		log.Printf("store close error: %v", err)
	}
	h.err = err
}

func registerHandlers(mux *http.ServeMux, server *intrnl.Server, uploads *intrnl.UploadHandler) {
	mux.HandleFunc("/ws", server.ServeWS)
	mux.HandleFunc("/messages", server.HandleMessages)
	mux.HandleFunc("/online-users", server.HandleOnlineUsers)
	mux.HandleFunc("/upload", server.HandleUpload)
	mux.Handle("/uploads/", uploads.StaticHandler())
	mux.Handle("/metrics", server.MetricsHandler())
}
