package segment

import "testing"

func TestTimeout(t *testing.T) {
	if got := Timeout(1, 10, 2); got.Minutes() != 10 {
		t.Errorf("expected floor of 10 minutes for small file, got %v", got)
	}
	if got := Timeout(20, 10, 2); got.Minutes() != 40 {
		t.Errorf("expected 20*2=40 minutes for large file, got %v", got)
	}
}

func TestLastBytes(t *testing.T) {
	if got := lastBytes([]byte("hello"), 10); got != "hello" {
		t.Errorf("expected full string when under limit, got %q", got)
	}
	if got := lastBytes([]byte("hello world"), 5); got != "world" {
		t.Errorf("expected last 5 bytes, got %q", got)
	}
}
