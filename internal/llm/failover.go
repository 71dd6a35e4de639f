package llm

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/expedition-ai/expedition/internal/retry"
)

// FailoverClient wraps a primary provider with bounded backoff retries
// and a one-shot failover to an optional secondary provider. At most two
// provider identities are tried per logical request: the failover path
// never re-enters the retry loop.
type FailoverClient struct {
	primary   Provider
	secondary Provider // nil = no failover configured
	retryCfg  retry.Config
	logger    zerolog.Logger
}

// NewFailoverClient constructs the wrapper. secondary may be nil.
func NewFailoverClient(primary, secondary Provider, cfg retry.Config, logger zerolog.Logger) *FailoverClient {
	return &FailoverClient{
		primary:   primary,
		secondary: secondary,
		retryCfg:  cfg,
		logger:    logger.With().Str("component", "failover").Logger(),
	}
}

// Primary returns the active provider's id.
func (f *FailoverClient) Primary() string { return f.primary.ID() }

// Execute runs the request against the primary with retries on transient
// errors. If the primary is exhausted and a secondary is configured, one
// attempt is made against it with the model id translated; if that also
// fails, the primary's error is surfaced.
func (f *FailoverClient) Execute(ctx context.Context, req Request, onChunk OnChunk) (*Response, error) {
	var resp *Response
	primaryErr := retry.Do(ctx, f.retryCfg, IsRetryable, func(ctx context.Context) error {
		var err error
		resp, err = f.primary.Execute(ctx, req, onChunk)
		return err
	})
	if primaryErr == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, primaryErr
	}

	if f.secondary == nil {
		return nil, primaryErr
	}

	failReq := req
	failReq.ModelID = TranslateModel(req.ModelID, f.secondary.ID())
	f.logger.Warn().
		Err(primaryErr).
		Str("primary", f.primary.ID()).
		Str("secondary", f.secondary.ID()).
		Str("model", failReq.ModelID).
		Msg("primary exhausted, attempting failover")

	resp, secondaryErr := f.secondary.Execute(ctx, failReq, onChunk)
	if secondaryErr != nil {
		f.logger.Error().Err(secondaryErr).Msg("failover attempt failed")
		return nil, primaryErr
	}
	return resp, nil
}
