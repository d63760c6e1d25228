// Copyright 2019-2025 The Liqo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/julienschmidt/httprouter"
	"k8s.io/klog/v2"
	"k8s.io/utils/trace"

	"github.com/liqotech/maap/internal/monitoring"
	"github.com/liqotech/maap/pkg/maap"
	traceutils "github.com/liqotech/maap/pkg/utils/trace"
)

// Server serves the management API.
type Server struct {
	engines     map[string]Engine
	waitTimeout time.Duration
	router      *httprouter.Router
}

// NewServer returns a server for the given engines. Requests asking to wait for the outcome of an acquisition
// are answered after waitTimeout at most.
func NewServer(engines []Engine, waitTimeout time.Duration) *Server {
	s := &Server{
		engines:     make(map[string]Engine, len(engines)),
		waitTimeout: waitTimeout,
		router:      httprouter.New(),
	}
	for _, e := range engines {
		s.engines[e.Port()] = e
	}

	s.router.GET(PortsURI, s.ports)
	s.router.GET(RangesURI, s.ranges)
	s.router.POST(RangesURI, s.acquire)
	s.router.GET(RangeURI, s.rangeStatus)
	s.router.DELETE(RangeURI, s.release)
	s.router.Handler(http.MethodGet, MetricsURI, monitoring.Handler())
	s.router.GET(HealthURI, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	})
	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on the given address until the context is canceled.
func (s *Server) Serve(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			klog.Errorf("Unable to shut down the management API: %v", err)
		}
	}()

	klog.Infof("Serving the management API on %s", address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("management API: %w", err)
	}
	return nil
}

func (s *Server) ports(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	infos := make([]PortInfo, 0, len(s.engines))
	for _, e := range s.engines {
		infos = append(infos, PortInfo{Name: e.Port(), LocalAddr: e.LocalAddr(), Pool: e.Pool()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	s.sendJSON(w, http.StatusOK, infos)
}

func (s *Server) ranges(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	e, ok := s.engine(w, ps)
	if !ok {
		return
	}
	statuses, err := e.Sessions(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	if statuses == nil {
		statuses = []maap.SessionStatus{}
	}
	s.sendJSON(w, http.StatusOK, statuses)
}

func (s *Server) rangeStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	e, ok := s.engine(w, ps)
	if !ok {
		return
	}
	status, found, err := e.Session(r.Context(), ps.ByName("id"))
	switch {
	case err != nil:
		s.handleError(w, err)
	case !found:
		s.sendError(w, fmt.Sprintf("range %s not found", ps.ByName("id")), http.StatusNotFound)
	default:
		s.sendJSON(w, http.StatusOK, status)
	}
}

func (s *Server) acquire(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tracer := trace.New("Acquire", trace.Field{Key: "port", Value: ps.ByName("port")})
	defer tracer.LogIfLong(traceutils.LongThreshold(s.waitTimeout))

	e, ok := s.engine(w, ps)
	if !ok {
		return
	}

	var req AcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	acq, err := e.Acquire(r.Context(), maap.AllocationRequest{Count: req.Count, Owner: req.Owner, Base: req.Base})
	if err != nil {
		s.handleError(w, err)
		return
	}
	tracer.Step("Request submitted")
	resp := AcquireResponse{ID: acq.ID}
	if !req.Wait {
		s.sendJSON(w, http.StatusAccepted, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout)
	defer cancel()
	res, err := acq.Wait(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.sendJSON(w, http.StatusAccepted, resp)
	case err != nil:
		s.handleError(w, err)
	default:
		resp.Reservation = res
		s.sendJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tracer := trace.New("Release",
		trace.Field{Key: "port", Value: ps.ByName("port")}, trace.Field{Key: "id", Value: ps.ByName("id")})
	defer tracer.LogIfLong(traceutils.LongThreshold(0))

	e, ok := s.engine(w, ps)
	if !ok {
		return
	}
	if err := e.Release(r.Context(), ps.ByName("id")); err != nil {
		s.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) engine(w http.ResponseWriter, ps httprouter.Params) (Engine, bool) {
	e, found := s.engines[ps.ByName("port")]
	if !found {
		s.sendError(w, fmt.Sprintf("port %s not found", ps.ByName("port")), http.StatusNotFound)
	}
	return e, found
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, body any) {
	res, err := json.Marshal(body)
	if err != nil {
		klog.Error(err)
		s.handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err = w.Write(res); err != nil {
		klog.Error(err)
	}
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	s.sendError(w, err.Error(), StatusCode(err))
}

func (s *Server) sendError(w http.ResponseWriter, resp string, code int) {
	klog.V(3).Infof("%v - sending error response: %v", code, resp)
	http.Error(w, resp, code)
}

// StatusCode returns the HTTP status code reporting the given engine error.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, maap.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, maap.ErrUnavailable), errors.Is(err, maap.ErrExhausted), errors.Is(err, maap.ErrConflictRetriesExhausted):
		return http.StatusConflict
	case errors.Is(err, maap.ErrCanceled):
		return http.StatusGone
	case errors.Is(err, maap.ErrTransportFailure), errors.Is(err, maap.ErrEngineStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
