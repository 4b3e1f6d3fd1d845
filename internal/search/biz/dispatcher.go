package biz

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/pkg/logger"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/aggregator"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/backend"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/normalizer"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/preset"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/request"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/resolver"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// Dispatcher runs a query through resolution, backend selection, request
// building, execution and normalization. It holds only read-only state and
// is safe for concurrent calls.
type Dispatcher struct {
	config   Config
	presets  *preset.Table
	backends *backend.Table
	resolver *resolver.Resolver
	selector *backend.Selector
	creds    backend.CredentialSource
	logger   *logger.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(
	config Config,
	presets *preset.Table,
	backends *backend.Table,
	creds backend.CredentialSource,
	lgr *logger.Logger,
) *Dispatcher {
	if presets == nil {
		presets = preset.Default()
	}
	if creds == nil {
		creds = backend.EnvCredentials{}
	}
	if lgr == nil {
		lgr = logger.L()
	}
	return &Dispatcher{
		config:   config,
		presets:  presets,
		backends: backends,
		resolver: resolver.New(presets, nil),
		selector: backend.NewSelector(backends),
		creds:    creds,
		logger:   lgr.Named("dispatcher"),
	}
}

// Presets returns the preset table
func (d *Dispatcher) Presets() *preset.Table {
	return d.presets
}

// Backends returns the backend descriptors in preference order
func (d *Dispatcher) Backends() []*backend.Descriptor {
	return d.backends.All()
}

// Search dispatches one query. It never returns a nil result; failures are
// reported in the result's error field.
func (d *Dispatcher) Search(ctx context.Context, req *SearchRequest) *types.SearchResult {
	start := time.Now()

	var requestID string
	if req != nil {
		requestID = req.RequestID
	}
	if requestID == "" {
		requestID = logger.GetRequestID(ctx)
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx = logger.WithRequestID(ctx, requestID)
	log := d.logger.WithContext(ctx)

	finish := func(r *types.SearchResult) *types.SearchResult {
		r.RequestID = requestID
		r.LatencyMs = time.Since(start).Milliseconds()
		return r
	}

	if req == nil {
		err := apperrors.New(apperrors.ErrInvalidQuery, "request is nil")
		log.Warn("search rejected", zap.Error(err))
		return finish(normalizer.Failure("", err))
	}

	modeName := req.Mode
	if strings.TrimSpace(modeName) == "" {
		modeName = d.config.Mode
	}
	mode, ok := types.ParseMode(modeName)
	if !ok {
		err := apperrors.Newf(apperrors.ErrUnknownMode, "%q (allowed: auto, direct, relay)", modeName)
		log.Warn("search rejected", zap.Error(err))
		return finish(normalizer.Failure("", err))
	}

	query := req.Query.WithDefaults(d.config.MaxTokens, d.config.Temperature)
	cfg, err := d.resolver.Resolve(query, req.Preset, req.Shortcuts, req.Options)
	if err != nil {
		log.Warn("search configuration rejected", zap.Error(err))
		return finish(normalizer.Failure("", err))
	}

	candidates, err := d.selector.Candidates(mode, d.creds)
	if err != nil {
		log.Warn("no backend available", zap.String("mode", string(mode)), zap.Error(err))
		return finish(normalizer.Failure("", err))
	}
	if mode != types.ModeAuto || !d.config.Failover {
		candidates = candidates[:1]
	}

	policy := req.Policy
	if policy == "" {
		policy = d.config.Policy
	}
	builder := request.NewBuilder(
		request.WithPolicy(policy),
		request.WithMaxAttachmentBytes(d.config.MaxAttachmentBytes),
	)

	var earlier []error
	for i, desc := range candidates {
		actx := logger.WithBackend(ctx, string(desc.ID))
		blog := d.logger.WithContext(actx)

		result, err := d.attempt(actx, blog, builder, cfg, query, desc)
		if err == nil {
			result.Config = cfg
			blog.Info("search completed",
				zap.Bool("streaming", result.Streaming),
				zap.Int("citations", len(result.Citations)),
				zap.Duration("latency", time.Since(start)),
			)
			return finish(result)
		}

		last := i == len(candidates)-1
		if ctx.Err() != nil || last || !apperrors.IsTransportError(apperrors.ExtractCode(err)) {
			blog.Warn("search failed", zap.Error(err))
			return finish(normalizer.Failure(desc.ID, withEarlier(err, earlier)))
		}

		blog.Warn("backend failed, failing over",
			zap.String("next", string(candidates[i+1].ID)),
			zap.Error(err),
		)
		earlier = append(earlier, err)
	}

	// unreachable: candidates is never empty
	return finish(normalizer.Failure("", apperrors.New(apperrors.ErrUnknown)))
}

// attempt runs one backend end to end
func (d *Dispatcher) attempt(
	ctx context.Context,
	log *logger.Logger,
	builder *request.Builder,
	cfg *types.ResolvedConfig,
	query types.SearchQuery,
	desc *backend.Descriptor,
) (*types.SearchResult, error) {
	payload, err := builder.Build(cfg, query, desc)
	if err != nil {
		return nil, err
	}
	for _, w := range payload.Warnings {
		log.Warn("request adjusted", zap.String("warning", w))
	}

	log.Info("dispatching search",
		zap.Bool("stream", payload.Stream),
		zap.String("preset", cfg.Preset),
	)

	resp, err := desc.Transport.Execute(ctx, payload, payload.Stream)
	if err != nil {
		return nil, err
	}

	var result *types.SearchResult
	if resp.Streaming {
		acc, err := aggregator.Aggregate(ctx, resp.Chunks)
		if err != nil {
			return nil, attribute(desc.ID, err)
		}
		if acc.Degraded() {
			log.Warn("stream degraded",
				zap.Int("malformed_chunks", acc.Malformed),
				zap.Int("received_chunks", acc.Received),
			)
		}
		result = normalizer.FromStream(desc.ID, acc)
	} else {
		if result, err = normalizer.Normalize(resp); err != nil {
			return nil, attribute(desc.ID, err)
		}
	}

	result.Warnings = payload.Warnings
	return result, nil
}

// attribute classifies bare errors and names the backend that produced them
func attribute(id types.BackendID, err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		code := apperrors.ErrTransportFailed
		if apperrors.IsTimeout(err) {
			code = apperrors.ErrTimeout
		}
		return apperrors.Wrap(err, code).WithBackend(string(id))
	}
	if appErr.Backend == "" {
		return appErr.WithBackend(string(id))
	}
	return err
}

// withEarlier records failures of backends tried before err's backend
func withEarlier(err error, earlier []error) error {
	var appErr *apperrors.AppError
	if len(earlier) == 0 || !errors.As(err, &appErr) {
		return err
	}
	notes := make([]string, 0, len(earlier))
	for _, e := range earlier {
		notes = append(notes, e.Error())
	}
	c := *appErr
	prior := "after " + strings.Join(notes, "; ")
	if c.Details == "" {
		c.Details = prior
	} else {
		c.Details += " (" + prior + ")"
	}
	return &c
}
