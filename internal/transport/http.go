package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/ahriroot/watchmen/internal/apperr"
	"github.com/ahriroot/watchmen/internal/dispatch"
	"github.com/ahriroot/watchmen/internal/logging"
	"github.com/ahriroot/watchmen/internal/webui"
)

// httpAdapter serves the JSON protocol at POST /api (with OPTIONS
// preflight support) and the embedded static panel everywhere else.
type httpAdapter struct {
	ln  net.Listener
	srv *http.Server
	log *logging.Logger
}

// NewHTTP binds an HTTP listener on host:port.
func NewHTTP(host string, port int, disp *dispatch.Dispatcher, log *logging.Logger) (Adapter, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, apperr.NewIOFailure(err, "failed to bind http "+addr)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api", apiHandler(disp, log))
	mux.Handle("/", http.FileServer(http.FS(webui.FS())))

	return &httpAdapter{ln: ln, srv: &http.Server{Handler: mux}, log: log}, nil
}

func apiHandler(disp *dispatch.Dispatcher, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Warnf("http: failed to read request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		resp := disp.HandleRaw(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write(resp)
	}
}

func (h *httpAdapter) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		h.srv.Close()
	}()
	err := h.srv.Serve(h.ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (h *httpAdapter) Close() error {
	return h.srv.Close()
}
