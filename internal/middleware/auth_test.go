package middleware

import (
	"context"
	"testing"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"Bearer ", "", false},
		{"bearer abc", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer abc def", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestWithUser(t *testing.T) {
	ctx := WithUser(context.Background(), "u-alice", "alice@example.com")
	if GetUserID(ctx) != "u-alice" || GetEmail(ctx) != "alice@example.com" {
		t.Errorf("got %q %q", GetUserID(ctx), GetEmail(ctx))
	}
	if GetUserID(context.Background()) != "" {
		t.Error("expected empty user ID on bare context")
	}
}
