package llm

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expedition-ai/expedition/internal/retry"
)

// fakeProvider scripts failures for failover tests.
type fakeProvider struct {
	id      string
	calls   int
	fail    func(attempt int) error
	lastReq Request
}

func (f *fakeProvider) Execute(ctx context.Context, req Request, onChunk OnChunk) (*Response, error) {
	f.calls++
	f.lastReq = req
	if f.fail != nil {
		if err := f.fail(f.calls); err != nil {
			return nil, err
		}
	}
	if onChunk != nil {
		onChunk(Chunk{Content: "ok from " + f.id})
		onChunk(Chunk{Done: true})
	}
	return &Response{Content: "ok from " + f.id, ProviderID: f.id, ModelID: req.ModelID}, nil
}

func (f *fakeProvider) TestConnection(ctx context.Context) error { return nil }
func (f *fakeProvider) ID() string                               { return f.id }

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func always503(attempt int) error {
	return newHTTPError(ProviderGateway, 503, "unavailable")
}

func TestFailover_PrimarySucceeds(t *testing.T) {
	primary := &fakeProvider{id: ProviderGateway}
	secondary := &fakeProvider{id: ProviderVendor}
	fc := NewFailoverClient(primary, secondary, fastRetry(), zerolog.Nop())

	resp, err := fc.Execute(context.Background(), Request{Prompt: "hi", ModelID: "m", MaxTokens: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok from gateway", resp.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, secondary.calls)
}

func TestFailover_TransientRecoversWithinRetries(t *testing.T) {
	primary := &fakeProvider{id: ProviderGateway, fail: func(n int) error {
		if n < 3 {
			return always503(n)
		}
		return nil
	}}
	fc := NewFailoverClient(primary, nil, fastRetry(), zerolog.Nop())

	resp, err := fc.Execute(context.Background(), Request{Prompt: "hi", ModelID: "m", MaxTokens: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderGateway, resp.ProviderID)
	assert.Equal(t, 3, primary.calls)
}

func TestFailover_ExhaustedPrimaryFallsBackOnce(t *testing.T) {
	primary := &fakeProvider{id: ProviderGateway, fail: always503}
	secondary := &fakeProvider{id: ProviderVendor}
	fc := NewFailoverClient(primary, secondary, fastRetry(), zerolog.Nop())

	resp, err := fc.Execute(context.Background(), Request{
		Prompt: "hi", ModelID: "anthropic/claude-sonnet-4", MaxTokens: 10,
	}, nil)
	require.NoError(t, err)

	// Exactly 3 backoff attempts against the primary plus 1 against the
	// fallback, with the model id translated for the fallback call.
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, "ok from vendor", resp.Content)
	assert.Equal(t, "claude-sonnet-4-20250514", secondary.lastReq.ModelID)
}

func TestFailover_SecondaryFailureSurfacesPrimaryError(t *testing.T) {
	primaryErr := newHTTPError(ProviderGateway, 503, "primary down")
	primary := &fakeProvider{id: ProviderGateway, fail: func(int) error { return primaryErr }}
	secondary := &fakeProvider{id: ProviderVendor, fail: func(int) error {
		return newHTTPError(ProviderVendor, 500, "secondary down")
	}}
	fc := NewFailoverClient(primary, secondary, fastRetry(), zerolog.Nop())

	_, err := fc.Execute(context.Background(), Request{Prompt: "hi", ModelID: "m", MaxTokens: 10}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, primaryErr)
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFailover_NonTransientSkipsRetriesButStillFailsOver(t *testing.T) {
	primary := &fakeProvider{id: ProviderGateway, fail: func(int) error {
		return newHTTPError(ProviderGateway, 401, "bad credential")
	}}
	secondary := &fakeProvider{id: ProviderVendor}
	fc := NewFailoverClient(primary, secondary, fastRetry(), zerolog.Nop())

	resp, err := fc.Execute(context.Background(), Request{Prompt: "hi", ModelID: "m", MaxTokens: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls) // no retries on auth failure
	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, ProviderVendor, resp.ProviderID)
}

func TestFailover_CountsRetriesThroughHook(t *testing.T) {
	primary := &fakeProvider{id: ProviderGateway, fail: always503}
	cfg := fastRetry()
	retried := 0
	cfg.OnRetry = func(int, error) { retried++ }
	fc := NewFailoverClient(primary, nil, cfg, zerolog.Nop())

	_, err := fc.Execute(context.Background(), Request{Prompt: "hi", ModelID: "m", MaxTokens: 10}, nil)
	require.Error(t, err)
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, 2, retried)
}

func TestFailover_NoSecondaryConfigured(t *testing.T) {
	primary := &fakeProvider{id: ProviderGateway, fail: always503}
	fc := NewFailoverClient(primary, nil, fastRetry(), zerolog.Nop())

	_, err := fc.Execute(context.Background(), Request{Prompt: "hi", ModelID: "m", MaxTokens: 10}, nil)
	require.Error(t, err)
	assert.Equal(t, 3, primary.calls)
}
