package safehttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient_DeniesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach a loopback server")
	}))
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	_, err := NewClient(2 * time.Second).Do(req)
	if err == nil {
		t.Fatal("Do() error = nil, want denial")
	}
	if !strings.Contains(err.Error(), "is denied") {
		t.Errorf("Do() error = %v, want private IP denial", err)
	}
}

func TestDenyPrivate(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"127.0.0.1:80", true},
		{"10.1.2.3:443", true},
		{"192.168.0.10:443", true},
		{"169.254.169.254:80", true},
		{"[::1]:443", true},
		{"0.0.0.0:80", true},
		{"93.184.216.34:443", false},
	}
	for _, tt := range tests {
		err := denyPrivate("tcp", tt.addr, nil)
		if (err != nil) != tt.wantErr {
			t.Errorf("denyPrivate(%s) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
		}
	}
}
