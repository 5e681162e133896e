// Package server implements the dynamic DNS callback endpoint routers call
// when their public address changes:
//
//	GET /<any path>?myip=1.2.3.4&hostname=home.example.com
//	Authorization: Basic base64(user:password)
package server

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/metrics"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/updater"
)

// Updater applies an address change.
type Updater interface {
	Update(ctx context.Context, hostname, ip string) (updater.Result, error)
}

// Response is the status and plain-text body returned to the router.
type Response struct {
	Status int
	Body   string
}

// Server handles router callbacks one at a time.
type Server struct {
	Username string
	Password string
	Updater  Updater
	Log      logr.Logger

	mu sync.Mutex
}

// Handle processes one callback. Wrong credentials are rejected first,
// then missing parameters, then a missing Authorization header.
// A logger carried by ctx takes precedence over s.Log.
func (s *Server) Handle(ctx context.Context, query url.Values, authHeader string) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := logr.FromContext(ctx)
	if err != nil {
		log = s.Log
	}

	resp, err := s.handle(ctx, query, authHeader)
	if err != nil {
		resp = errorResponse(err)
		if resp.Status >= http.StatusInternalServerError {
			log.Error(err, "callback failed", "status", resp.Status)
		} else {
			log.Info("callback rejected", "status", resp.Status, "reason", err.Error())
		}
		return resp
	}
	log.Info("callback handled", "hostname", query.Get("hostname"), "body", resp.Body)
	return resp
}

func (s *Server) handle(ctx context.Context, query url.Values, authHeader string) (Response, error) {
	authErr := s.authorize(authHeader)
	if authErr != nil && !errors.Is(authErr, ErrAuthMissing) {
		return Response{}, authErr
	}

	myip, hostname := query.Get("myip"), query.Get("hostname")
	if myip == "" || hostname == "" {
		return Response{}, ErrParametersMissing
	}
	if authErr != nil {
		return Response{}, authErr
	}
	addr, err := netip.ParseAddr(myip)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %q", ErrInvalidAddress, myip)
	}
	ip := addr.String()

	res, err := s.Updater.Update(ctx, hostname, ip)
	if err != nil {
		return Response{}, err
	}
	if res.Unchanged {
		return Response{Status: http.StatusOK, Body: fmt.Sprintf("%s is already %s", res.Record, ip)}, nil
	}
	return Response{Status: http.StatusOK, Body: "Done"}, nil
}

// authorize checks a Basic Authorization header against the configured
// credentials.
func (s *Server) authorize(header string) error {
	if header == "" {
		return ErrAuthMissing
	}
	scheme, encoded, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return ErrAuthInvalid
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return ErrAuthInvalid
	}
	user, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return ErrAuthInvalid
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.Username)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.Password)) == 1
	if !userOK || !passwordOK {
		return ErrAuthInvalid
	}
	return nil
}

// ServeHTTP implements http.Handler. Any path is accepted.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)

	var resp Response
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		resp = Response{Status: http.StatusMethodNotAllowed, Body: "Method not allowed"}
	} else {
		log := s.Log.WithValues("requestID", requestID, "remote", r.RemoteAddr)
		ctx := logr.NewContext(r.Context(), log)
		resp = s.Handle(ctx, r.URL.Query(), r.Header.Get("Authorization"))
	}

	metrics.CallbacksTotal.WithLabelValues(strconv.Itoa(resp.Status)).Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(resp.Status)
	_, _ = w.Write([]byte(resp.Body))
}
