package auth

import (
	"net/http/httptest"
	"testing"
)

func TestStaticTokenAuthorizer(t *testing.T) {
	a := NewStaticTokenAuthorizer([]string{"alpha", "beta", ""})

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"known token", "alpha", true},
		{"second known token", "beta", true},
		{"unknown token", "gamma", false},
		{"missing header", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/v1/computing_ids", nil)
			if tt.token != "" {
				r.Header.Set(TokenHeader, tt.token)
			}
			if got := a.Authorize(r); got != tt.want {
				t.Errorf("Authorize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStaticTokenAuthorizer_EmptyTokenNeverAuthenticates(t *testing.T) {
	a := NewStaticTokenAuthorizer(nil)

	r := httptest.NewRequest("POST", "/v1/computing_ids", nil)
	r.Header.Set(TokenHeader, "")
	if a.Authorize(r) {
		t.Error("blank token must not authenticate")
	}
}

func TestAllowAll(t *testing.T) {
	r := httptest.NewRequest("GET", "/health", nil)
	if !(AllowAll{}).Authorize(r) {
		t.Error("AllowAll must authorize every request")
	}
}
