package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	id := GenerateRequestID()

	if len(id) != 22 {
		t.Errorf("len(id) = %d, want 22", len(id))
	}
	if !requestIDPattern.MatchString(id) {
		t.Errorf("id %q does not match the accepted pattern", id)
	}

	if GenerateRequestID() == id {
		t.Error("GenerateRequestID() returned the same ID twice")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")

	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-123")
	}

	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		upstreamID   string
		wantUpstream bool
	}{
		{
			name:         "missing ID gets generated",
			upstreamID:   "",
			wantUpstream: false,
		},
		{
			name:         "valid upstream ID preserved",
			upstreamID:   "aws-alb-1234_abcd",
			wantUpstream: true,
		},
		{
			name:         "header injection payload replaced",
			upstreamID:   "bad\r\nSet-Cookie: x=1",
			wantUpstream: false,
		},
		{
			name:         "oversized ID replaced",
			upstreamID:   strings.Repeat("a", 129),
			wantUpstream: false,
		},
		{
			name:         "ID with spaces replaced",
			upstreamID:   "not a valid id",
			wantUpstream: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = GetRequestID(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.upstreamID != "" {
				req.Header.Set(RequestIDHeader, tt.upstreamID)
			}
			rec := httptest.NewRecorder()

			RequestIDMiddleware(next).ServeHTTP(rec, req)

			echoed := rec.Header().Get(RequestIDHeader)
			if echoed == "" {
				t.Fatal("response is missing the request ID header")
			}
			if echoed != ctxID {
				t.Errorf("context ID %q != response header ID %q", ctxID, echoed)
			}

			if tt.wantUpstream {
				if echoed != tt.upstreamID {
					t.Errorf("request ID = %q, want upstream %q preserved", echoed, tt.upstreamID)
				}
			} else {
				if echoed == tt.upstreamID {
					t.Errorf("request ID %q should have been replaced", echoed)
				}
				if !requestIDPattern.MatchString(echoed) {
					t.Errorf("generated ID %q does not match the accepted pattern", echoed)
				}
			}
		})
	}
}
