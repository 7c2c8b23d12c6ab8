package telegram

import (
	"testing"
	"time"
)

func TestParseRuntimeConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
		assert  func(t *testing.T, cfg parsedRuntimeConfig)
	}{
		{
			name: "minimal config applies defaults",
			raw:  `{"app_id": 12345, "app_hash": "hash", "bot_token": "123:abc"}`,
			assert: func(t *testing.T, cfg parsedRuntimeConfig) {
				t.Helper()
				if cfg.publishTimeout != defaultRuntimeTimeout {
					t.Fatalf("publish timeout = %s, want %s", cfg.publishTimeout, defaultRuntimeTimeout)
				}
				if cfg.authTimeout != defaultRuntimeAuthTimeout {
					t.Fatalf("auth timeout = %s, want %s", cfg.authTimeout, defaultRuntimeAuthTimeout)
				}
				if cfg.updateBuffer != 256 {
					t.Fatalf("update buffer = %d, want 256", cfg.updateBuffer)
				}
				if cfg.sessionFile != defaultRuntimeSessionFile {
					t.Fatalf("session file = %s, want %s", cfg.sessionFile, defaultRuntimeSessionFile)
				}
			},
		},
		{
			name: "explicit overrides",
			raw: `{
				"app_id": 12345,
				"app_hash": "hash",
				"bot_token": "123:abc",
				"publish_timeout": "5s",
				"auth_timeout": "30s",
				"update_buffer": 64,
				"session_file": "/tmp/session.json"
			}`,
			assert: func(t *testing.T, cfg parsedRuntimeConfig) {
				t.Helper()
				if cfg.publishTimeout != 5*time.Second {
					t.Fatalf("publish timeout = %s, want 5s", cfg.publishTimeout)
				}
				if cfg.authTimeout != 30*time.Second {
					t.Fatalf("auth timeout = %s, want 30s", cfg.authTimeout)
				}
				if cfg.updateBuffer != 64 {
					t.Fatalf("update buffer = %d, want 64", cfg.updateBuffer)
				}
				if cfg.sessionFile != "/tmp/session.json" {
					t.Fatalf("session file = %s", cfg.sessionFile)
				}
			},
		},
		{
			name:    "empty config",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "malformed json",
			raw:     "{",
			wantErr: true,
		},
		{
			name:    "missing app id",
			raw:     `{"app_hash": "hash", "bot_token": "123:abc"}`,
			wantErr: true,
		},
		{
			name:    "missing app hash",
			raw:     `{"app_id": 12345, "bot_token": "123:abc"}`,
			wantErr: true,
		},
		{
			name:    "missing bot token",
			raw:     `{"app_id": 12345, "app_hash": "hash"}`,
			wantErr: true,
		},
		{
			name:    "invalid publish timeout",
			raw:     `{"app_id": 12345, "app_hash": "hash", "bot_token": "123:abc", "publish_timeout": "soon"}`,
			wantErr: true,
		},
		{
			name:    "non-positive auth timeout",
			raw:     `{"app_id": 12345, "app_hash": "hash", "bot_token": "123:abc", "auth_timeout": "-1s"}`,
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := parseRuntimeConfig([]byte(testCase.raw))
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.assert != nil {
				testCase.assert(t, cfg)
			}
		})
	}
}

func TestNewGotdSessionStorage(t *testing.T) {
	t.Parallel()

	storage, err := newGotdSessionStorage(t.TempDir() + "/nested/session.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if storage.Path == "" {
		t.Fatal("expected resolved session path")
	}

	if _, err := newGotdSessionStorage("   "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
