package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsAndHashes(t *testing.T) {
	kv := sanitizeKVs([]interface{}{
		"authorization", "Bearer abc",
		"user_id", "6f1d2c1e-8c0e-4a4e-9d3c-0a0a0a0a0a0a",
		"jwt_raw", "x",
		"value", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig",
		"project_id", "p1",
	})
	if len(kv) != 10 {
		t.Fatalf("len: want=10 got=%d", len(kv))
	}
	if kv[1] != "[REDACTED]" {
		t.Fatalf("authorization: want redacted got=%v", kv[1])
	}
	hashed, _ := kv[3].(string)
	if !strings.HasPrefix(hashed, "hash:") || len(hashed) != len("hash:")+12 {
		t.Fatalf("user_id: want hash got=%v", kv[3])
	}
	if kv[5] != "[REDACTED]" {
		t.Fatalf("jwt_raw: want redacted got=%v", kv[5])
	}
	if kv[7] != "[REDACTED]" {
		t.Fatalf("jwt-shaped value: want redacted got=%v", kv[7])
	}
	if kv[9] != "p1" {
		t.Fatalf("project_id: want=%q got=%v", "p1", kv[9])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	kv := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(kv) != 3 || kv[2] != "dangling" {
		t.Fatalf("dangling key: got=%v", kv)
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"prod", "test", "development"} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.With("component", "test").Debug("hello", "k", "v")
	}
}
