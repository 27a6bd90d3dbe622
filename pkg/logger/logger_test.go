package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestInit_SingletonAndFields(t *testing.T) {
	t.Cleanup(Reset)
	Reset()

	var buf bytes.Buffer
	log := Init(Options{Level: "info", Service: "auth-service", Env: "test", Output: &buf})
	log.Debug().Msg("hidden")
	log.Info().Msg("visible")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "visible" || line["service"] != "auth-service" || line["env"] != "test" {
		t.Fatalf("unexpected line: %v", line)
	}

	// A second Init keeps the first configuration.
	var other bytes.Buffer
	Init(Options{Output: &other})
	l := Get()
	l.Info().Msg("again")
	if other.Len() != 0 {
		t.Fatal("second Init replaced the singleton")
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"again"`)) {
		t.Fatalf("Get did not return the first logger: %q", buf.String())
	}
}

func TestGet_BeforeInitPanics(t *testing.T) {
	t.Cleanup(Reset)
	Reset()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Get()
}
