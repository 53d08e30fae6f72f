package auth

import (
	"net/http"
	"testing"
)

func TestHashToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
	}{
		{
			name:     "simple token",
			token:    "test-key-123",
			expected: "625faa3fbbc3d2bd9d6ee7678d04cc5339cb33dc68d9b58451853d60046e226a",
		},
		{
			name:     "empty token",
			token:    "",
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashToken(tt.token)
			if hash != tt.expected {
				t.Errorf("HashToken() = %v, want %v", hash, tt.expected)
			}
		})
	}
}

func TestNewAuthenticator_Disabled(t *testing.T) {
	if a := NewAuthenticator(nil); a != nil {
		t.Error("expected nil authenticator when no hashes are configured")
	}
}

func TestAuthenticator_ValidateToken(t *testing.T) {
	auth := NewAuthenticator([]string{
		HashToken("ci-token-1"),
		// Hashes copied from keygen output may carry whitespace or upper case
		"  " + upper(HashToken("ci-token-2")) + " ",
	})

	tests := []struct {
		name      string
		token     string
		wantError bool
	}{
		{name: "first token", token: "ci-token-1"},
		{name: "second token", token: "ci-token-2"},
		{name: "invalid token", token: "other", wantError: true},
		{name: "empty token", token: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateToken(tt.token)
			if tt.wantError && err == nil {
				t.Error("ValidateToken() expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("ValidateToken() unexpected error: %v", err)
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		want       string
		wantError  bool
	}{
		{
			name:       "valid bearer token",
			authHeader: "Bearer test-key-123",
			want:       "test-key-123",
		},
		{
			name:       "bearer lowercase",
			authHeader: "bearer test-key-456",
			want:       "test-key-456",
		},
		{
			name:       "missing bearer prefix",
			authHeader: "test-key-789",
			wantError:  true,
		},
		{
			name:       "basic scheme",
			authHeader: "Basic dXNlcjpwYXNz",
			wantError:  true,
		},
		{
			name:       "empty header",
			authHeader: "",
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest("POST", "http://example.com/deploy", nil)
			if err != nil {
				t.Fatalf("Failed to create request: %v", err)
			}

			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			got, err := ExtractToken(req)

			if tt.wantError {
				if err == nil {
					t.Error("ExtractToken() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("ExtractToken() unexpected error: %v", err)
				return
			}

			if got != tt.want {
				t.Errorf("ExtractToken() = %v, want %v", got, tt.want)
			}
		})
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
