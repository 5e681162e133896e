package server

import (
	"errors"
	"net/http"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
)

// Request errors detected by the server itself.
var (
	ErrParametersMissing = errors.New("necessary parameters not set")
	ErrInvalidAddress    = errors.New("invalid myip")
	ErrAuthMissing       = errors.New("no auth token")
	ErrAuthInvalid       = errors.New("wrong auth token")
)

// statusMapping is checked in order; the first matching error decides the
// response. Anything else is an internal error.
var statusMapping = []struct {
	err    error
	status int
	body   string
}{
	{ErrParametersMissing, http.StatusBadRequest, "Necessary parameters not set"},
	{ErrInvalidAddress, http.StatusBadRequest, "Invalid myip"},
	{ErrAuthMissing, http.StatusUnauthorized, "No auth token"},
	{ErrAuthInvalid, http.StatusForbidden, "Wrong auth token"},
	{dns.ErrNotFound, http.StatusNotFound, "Record not found"},
	{dns.ErrAuthFailed, http.StatusBadGateway, "Provider authentication failed"},
	{dns.ErrRejected, http.StatusBadGateway, "Provider rejected the change"},
	{dns.ErrUnreachable, http.StatusGatewayTimeout, "Provider unreachable"},
}

// errorResponse maps err to the response sent to the router.
func errorResponse(err error) Response {
	for _, m := range statusMapping {
		if errors.Is(err, m.err) {
			return Response{Status: m.status, Body: m.body}
		}
	}
	return Response{Status: http.StatusInternalServerError, Body: "Internal error"}
}
