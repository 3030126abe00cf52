package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewWritesServiceField(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Service: "campaign-health", Level: ParseLevel("debug"), Output: buf})

	log.Debug().Str("campaign_id", "c-1").Msg("analyzed")

	assert.Contains(t, buf.String(), `"service":"campaign-health"`)
	assert.Contains(t, buf.String(), `"campaign_id":"c-1"`)
}

func TestLevelFilters(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Service: "t", Level: zerolog.WarnLevel, Output: buf})

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Service: "t", Format: "console", Output: buf})
	log.Info().Msg("hello")
	assert.NotContains(t, buf.String(), `{"level"`)
	assert.Contains(t, buf.String(), "hello")
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nope"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}

func TestRequestIDInContext(t *testing.T) {
	buf := &bytes.Buffer{}
	base := New(Options{Service: "t", Output: buf})

	ctx := WithRequestID(context.Background(), base, "req-123")
	l := From(ctx, zerolog.Nop())
	l.Info().Msg("x")

	assert.Contains(t, buf.String(), `"request_id":"req-123"`)

	fallback := From(context.Background(), base)
	assert.Equal(t, base.GetLevel(), fallback.GetLevel())
}
