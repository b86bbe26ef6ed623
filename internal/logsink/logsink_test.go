package logsink

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"trace": LevelTrace,
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
	}
	for s, want := range cases {
		got, ok := ParseLevel(s)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %v,%v want %v,true", s, got, ok, want)
		}
	}
	if _, ok := ParseLevel("bogus"); ok {
		t.Fatal("ParseLevel accepted an unknown level name")
	}
}

func TestOutputHandlerMirrorsWrites(t *testing.T) {
	s := New()
	var mu sync.Mutex
	var lines []string
	s.SetOutputHandler(func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	})

	s.Write(LevelInfo, "foo.go", 10, "hello %s", "world")
	s.WriteDevice("%s", "OK\n")

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 2 {
		t.Fatalf("got %d mirrored lines, want 2", len(lines))
	}
	if lines[0] != "hello world" {
		t.Fatalf("lines[0] = %q, want %q", lines[0], "hello world")
	}
	if lines[1] != "OK\n" {
		t.Fatalf("lines[1] = %q, want %q", lines[1], "OK\\n")
	}
}

func TestSetOutputHandlerNilIsSafe(t *testing.T) {
	s := New()
	s.SetOutputHandler(func(string) {})
	s.SetOutputHandler(nil)
	s.Write(LevelInfo, "f.go", 1, "no handler installed")
	s.WriteDevice("still fine")
}

func TestSetOutputRedirectsLines(t *testing.T) {
	s := New()
	var buf bytes.Buffer
	s.SetOutput(&buf)
	s.Write(LevelInfo, "f.go", 1, "redirected")
	if !strings.Contains(buf.String(), "redirected") {
		t.Fatalf("buf = %q, want it to contain %q", buf.String(), "redirected")
	}
}

func TestDeviceChannelAdapter(t *testing.T) {
	s := New()
	var got string
	s.SetOutputHandler(func(line string) { got = line })
	dc := DeviceChannel{Sink: s}
	dc.Write("%s", "bytes")
	if got != "bytes" {
		t.Fatalf("got %q, want %q", got, "bytes")
	}
}
