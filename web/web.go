package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/JeanRibes/groovecast/control"
	"github.com/JeanRibes/groovecast/generation"
	"github.com/JeanRibes/groovecast/shared"

	charmlog "github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

const submitTimeout = 5 * time.Second

type Server struct {
	ctl        *control.Controller
	onShutdown func()
	logger     *charmlog.Logger
	router     *mux.Router
}

// New builds the routes. onShutdown is called by POST /shutdown and may be nil.
func New(ctl *control.Controller, onShutdown func(), logger *charmlog.Logger) *Server {
	if logger == nil {
		logger = charmlog.NewWithOptions(os.Stdout, charmlog.Options{Prefix: "http"})
	}
	s := &Server{ctl: ctl, onShutdown: onShutdown, logger: logger, router: mux.NewRouter()}

	s.router.HandleFunc("/set_params", s.setParams).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/control", s.action).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/tempo", s.setTempo).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/check_status", s.checkStatus).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/acknowledge_complete", s.acknowledge).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/status", s.status).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/shutdown", s.shutdown).Methods(http.MethodPost, http.MethodOptions)
	s.router.Use(mux.CORSMethodMiddleware(s.router))
	s.router.Use(headers)
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown", "err", err)
		}
	}()
	s.logger.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func headers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Cache-Control", "no-store")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writing response", "err", err)
	}
}

type message struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, code int, err error) {
	s.logger.Warn("request failed", "code", code, "err", err)
	s.writeJSON(w, code, message{Error: err.Error()})
}

func (s *Server) setParams(w http.ResponseWriter, r *http.Request) {
	p := generation.Params{}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()
	if err := s.ctl.SubmitParameters(ctx, p); err != nil {
		code := http.StatusServiceUnavailable
		if errors.Is(err, control.ErrStopped) {
			code = http.StatusConflict
		}
		s.fail(w, code, err)
		return
	}
	s.writeJSON(w, http.StatusOK, message{Message: "Processing MIDI file..."})
}

func (s *Server) action(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string  `json:"action"`
		BPM    float64 `json:"bpm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	ev, err := shared.ParseEvent(req.Action)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctl.Dispatch(shared.Message{Type: ev, Number: req.BPM}); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, message{Message: "Action " + req.Action + " processed"})
}

func (s *Server) setTempo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BPM float64 `json:"bpm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctl.SetTempo(req.BPM); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, message{Message: "tempo set"})
}

func (s *Server) checkStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"isComplete": s.ctl.GenerationComplete()})
}

func (s *Server) acknowledge(w http.ResponseWriter, r *http.Request) {
	s.ctl.AcknowledgeComplete()
	s.writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) shutdown(w http.ResponseWriter, r *http.Request) {
	if s.onShutdown != nil {
		s.onShutdown()
	}
	s.writeJSON(w, http.StatusOK, message{Message: "Server shutting down..."})
}
