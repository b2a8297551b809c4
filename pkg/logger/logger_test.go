package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tc := range tests {
		SetLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Errorf("SetLevel(%q) global level = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestInstall_SharesPackageLogger(t *testing.T) {
	defer Setup("info", "console")

	var buf bytes.Buffer
	install(&buf, zerolog.InfoLevel)
	log.Info().Str("item_id", "sku-1").Msg("hello")

	if !strings.Contains(buf.String(), `"item_id":"sku-1"`) {
		t.Errorf("package logger output = %q, want the installed writer", buf.String())
	}
}
