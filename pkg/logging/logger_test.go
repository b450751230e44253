package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogLevel_Zerolog(t *testing.T) {
	tests := []struct {
		level   LogLevel
		want    zerolog.Level
		wantErr bool
	}{
		{LevelDebug, zerolog.DebugLevel, false},
		{LevelInfo, zerolog.InfoLevel, false},
		{"WARNING", zerolog.WarnLevel, false},
		{" Error ", zerolog.ErrorLevel, false},
		{"", zerolog.NoLevel, true},
		{"trace", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			got, err := tt.level.Zerolog()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Zerolog() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Zerolog() = %v, want %v", got, tt.want)
			}
			if (tt.level.Validate() != nil) != tt.wantErr {
				t.Errorf("Validate() disagrees with Zerolog() for %q", tt.level)
			}
		})
	}
}

func TestSetup(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Service: "scoreboard-cache", Output: buf})

	logger := NewLogger("cache")
	logger.Info().Msg("memory tier hit")
	logger.Warn().Str("cache_type", "standings").Msg("retrying upstream")

	out := buf.String()
	if strings.Contains(out, "memory tier hit") {
		t.Error("info line written at warn level")
	}
	for _, want := range []string{`"service":"scoreboard-cache"`, `"component":"cache"`, `"cache_type":"standings"`, "retrying upstream"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %q", want, out)
		}
	}
}

func TestSetup_UnknownLevelFallsBackToInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: "loud", Output: buf})

	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
	if strings.Contains(buf.String(), `"service"`) {
		t.Errorf("service field written without a service: %q", buf.String())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelInfo || cfg.Pretty || cfg.Service != "scoreboard-cache" || cfg.Output == nil {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}
