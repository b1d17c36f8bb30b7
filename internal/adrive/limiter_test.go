package adrive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path   string
		expect limiterClass
	}{
		{fileListPath, classList},
		{shareListPath, classList},
		{shareFileListPath, classList},
		{fileDownloadURLPath, classLink},
		{shareDownloadURLPath, classLink},
		{fileGetPath, classOther},
		{shareCreatePath, classOther},
		{batchPath, classOther},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expect, classify(tt.path))
		})
	}
}

func TestLimiterClass_String(t *testing.T) {
	assert.Equal(t, "list", classList.String())
	assert.Equal(t, "link", classLink.String())
	assert.Equal(t, "other", classOther.String())
}

func TestLimiter_NilSafe(t *testing.T) {
	var l *limiter
	assert.NoError(t, l.wait(context.Background(), classList))

	disabled := newLimiter(RateLimits{})
	for range 50 {
		require.NoError(t, disabled.wait(context.Background(), classLink))
	}
}

func TestLimiter_BlocksOverBudget(t *testing.T) {
	l := newLimiter(RateLimits{List: 0.01, Link: 0.01, Other: 0.01})

	require.NoError(t, l.wait(context.Background(), classList))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, l.wait(ctx, classList))

	// Classes have independent budgets.
	assert.NoError(t, l.wait(context.Background(), classOther))
}

func TestDefaultRateLimits(t *testing.T) {
	rl := DefaultRateLimits()
	assert.InDelta(t, DefaultListRate, rl.List, 0)
	assert.InDelta(t, DefaultLinkRate, rl.Link, 0)
	assert.InDelta(t, DefaultOtherRate, rl.Other, 0)
}
