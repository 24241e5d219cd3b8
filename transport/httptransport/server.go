package httptransport

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"

	"go.uber.org/zap"

	"switchboard/codec"
	"switchboard/envelope"
	"switchboard/hub"
)

// Server is a minimal embedded HTTP receiver recognizing exactly two
// routes, per spec §4.6: POST / dispatches a request into h, GET /ping is a
// bare health check. Every other route replies 404, resolving the spec's
// flagged ambiguity (Open Question a) by making the two routes mutually
// exclusive instead of letting POST / fall through into the ping handler.
type Server struct {
	addr   string
	hub    *hub.Registry
	codec  codec.Codec
	logger *zap.Logger
	tls    *tls.Config
}

// NewServer returns a Server that dispatches every POST / into h, listening
// on addr. tlsConfig may be nil for plaintext.
func NewServer(addr string, h *hub.Registry, c codec.Codec, logger *zap.Logger, tlsConfig *tls.Config) *Server {
	return &Server{addr: addr, hub: h, codec: c, logger: logger, tls: tlsConfig}
}

// Handler returns the mux implementing the two routes described in spec
// §4.6. Exported so tests can drive it through httptest.NewServer without
// going through a real ListenAndServe/net.Listen.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/ping", s.handlePing)
	return mux
}

// ListenAndServe blocks, serving until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler(), TLSConfig: s.tls}

	errc := make(chan error, 1)
	go func() {
		if s.tls != nil {
			errc <- srv.ListenAndServeTLS("", "")
		} else {
			errc <- srv.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// handleRoot is the exclusive POST / route: GET, PUT, etc. against / fall
// through to a 404, same as any unrecognized path, rather than being
// silently accepted.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Warn("failed to read request body", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	req, err := envelope.DecodeRequest(s.codec, body)
	if err != nil {
		s.logger.Warn("failed to decode request", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	resp := s.hub.Dispatch(r.Context(), req)

	encoded, err := envelope.EncodeResponse(s.codec, resp)
	if err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
}

// handlePing is the bare health check: GET /ping → 200, empty body. Any
// other method against /ping is a 404, keeping the two routes exclusive.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/ping" || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}
