package zeronetworks

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrorKind classifies API error responses by their HTTP status.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindBadRequest
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not found"
	case KindServer:
		return "server error"
	default:
		return "api error"
	}
}

// APIError is returned for any non-2xx response from the portal API.
// It carries the HTTP status, a message extracted from the response
// body where possible, and the raw body for debugging.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zero networks api error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError for a missing resource.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

// IsAuthentication reports whether err is an APIError for a rejected key.
func IsAuthentication(err error) bool { return kindOf(err) == KindAuthentication }

// IsAuthorization reports whether err is an APIError for a forbidden resource.
func IsAuthorization(err error) bool { return kindOf(err) == KindAuthorization }

// IsBadRequest reports whether err is an APIError for a malformed request.
func IsBadRequest(err error) bool { return kindOf(err) == KindBadRequest }

// IsServerError reports whether err is an APIError for a 5xx response.
func IsServerError(err error) bool { return kindOf(err) == KindServer }

func kindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return -1
}

var defaultStatusMessages = map[int]string{
	http.StatusBadRequest:          "Bad Request - Invalid parameters or malformed request",
	http.StatusUnauthorized:        "Unauthorized - Invalid or missing API key",
	http.StatusForbidden:           "Forbidden - API key does not have permission for this resource",
	http.StatusNotFound:            "Not Found - The requested resource does not exist",
	http.StatusInternalServerError: "Internal Server Error - The API server encountered an error",
	http.StatusBadGateway:          "Bad Gateway - The API gateway received an invalid response",
	http.StatusServiceUnavailable:  "Service Unavailable - The API service is temporarily unavailable",
}

// newStatusError maps a non-2xx response to an APIError. The message is
// taken from the body's message/error/detail field where present,
// falling back to a canned message per status.
func newStatusError(status int, body []byte) *APIError {
	msg := ""
	if gjson.ValidBytes(body) {
		for _, key := range []string{"message", "error", "detail"} {
			if v := gjson.GetBytes(body, key); v.Exists() && v.String() != "" {
				msg = v.String()
				break
			}
		}
	}
	if msg == "" {
		if m, ok := defaultStatusMessages[status]; ok {
			msg = m
		} else {
			msg = fmt.Sprintf("HTTP %d Error", status)
		}
	}

	kind := KindGeneric
	switch {
	case status == http.StatusBadRequest:
		kind = KindBadRequest
	case status == http.StatusUnauthorized:
		kind = KindAuthentication
	case status == http.StatusForbidden:
		kind = KindAuthorization
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status >= 500:
		kind = KindServer
	}

	return &APIError{Kind: kind, StatusCode: status, Message: msg, Body: body}
}
