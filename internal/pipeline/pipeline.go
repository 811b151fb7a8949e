// Package pipeline is the C4 request pipeline: intake,
// prefetch, variant reconciliation, scan, render.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/twicecache/twice/internal/config"
	"github.com/twicecache/twice/internal/datastore"
	"github.com/twicecache/twice/internal/elements"
	"github.com/twicecache/twice/internal/evaluator"
	"github.com/twicecache/twice/internal/metrics"
	"github.com/twicecache/twice/internal/model"
	"github.com/twicecache/twice/internal/variantindex"
)

// Pipeline dispatches one HTTP request through intake, prefetch,
// variant reconciliation, scan, and render.
type Pipeline struct {
	cfg        *config.Config
	store      *datastore.DataStore
	registry   *elements.Registry
	evaluator  *evaluator.Evaluator
	purge      *variantindex.Handler
	templateRe *regexp.Regexp
	loginGated map[string]bool
	metrics    *metrics.PipelineMetrics
	logger     *slog.Logger
}

// New builds a Pipeline.
func New(cfg *config.Config, store *datastore.DataStore, registry *elements.Registry, eval *evaluator.Evaluator, purge *variantindex.Handler, m *metrics.PipelineMetrics, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	re, err := regexp.Compile(cfg.TemplateRegex)
	if err != nil {
		return nil, fmt.Errorf("pipeline: compile template_regex: %w", err)
	}
	gated := make(map[string]bool)
	for _, kind := range strings.Split(cfg.LoginGatedKinds, ",") {
		kind = strings.TrimSpace(kind)
		if kind != "" {
			gated[kind] = true
		}
	}
	return &Pipeline{
		cfg:        cfg,
		store:      store,
		registry:   registry,
		evaluator:  eval,
		purge:      purge,
		templateRe: re,
		loginGated: gated,
		metrics:    m,
		logger:     logger,
	}, nil
}

// Handle runs one request through the full pipeline and returns the
// response to write back to the client.
func (p *Pipeline) Handle(ctx context.Context, req *model.Request) *model.Response {
	// 1. Intake.
	if req.Header(p.cfg.PurgeHeader) != "" {
		p.bumpOutcome("purge")
		return p.handlePurge(ctx, req)
	}
	if strings.Contains(req.Path, "live/time") {
		p.bumpOutcome("liveness")
		return p.handleLiveness()
	}

	if !isSupportedMethod(req.Method) {
		p.bumpOutcome("unsupported_method")
		return p.finalize(&model.Response{Status: http.StatusMethodNotAllowed, Headers: http.Header{}})
	}

	// 2. Prefetch.
	pageID := elements.ComputeKey(p.cfg, req, nil)
	pageKey := elements.MakeKey("page", pageID)
	keys := []string{pageKey}

	sessionKey := ""
	if sessionKind, ok := p.registry.Lookup("session"); ok {
		if id, ok := sessionKind.Hash(ctx, req, ""); ok {
			sessionKey = elements.MakeKey("session", id)
			keys = append(keys, sessionKey)
		}
	}

	result, err := p.store.Get(ctx, keys, req)
	if err != nil {
		p.bumpOutcome("page_failed")
		return p.finalize(&model.Response{Status: http.StatusOK, Headers: http.Header{}})
	}

	pageVal, ok := result[pageKey]
	if !ok || pageVal.Absent {
		p.bumpOutcome("page_failed")
		return p.finalize(&model.Response{Status: http.StatusOK, Headers: http.Header{}})
	}

	// 3. Variant reconciliation.
	if len(pageVal.OriginVaryCookies) > 0 {
		correctedID := elements.ComputeKey(p.cfg, req, pageVal.OriginVaryCookies)
		if correctedID != pageID {
			if p.metrics != nil {
				p.metrics.ReconciliationsHit.Inc()
			}
			correctedKey := elements.MakeKey("page", correctedID)
			reconciled, err := p.store.Get(ctx, []string{correctedKey}, req)
			if err == nil {
				if v, ok := reconciled[correctedKey]; ok && !v.Absent {
					pageVal = v
					pageKey = correctedKey
				}
			}
		}
	}

	// 4. Scan.
	fragments := evaluator.FragmentMap{}
	sessionVal, haveSession := result[sessionKey]
	if sessionKey != "" && haveSession && !sessionVal.Absent {
		fragments["session"] = sessionVal.Fields
	}

	var toFetch []string
	seen := map[string]bool{}
	for _, m := range scan(p.templateRe, pageVal.Bytes) {
		if !elements.IsFragmentKind(m.target) {
			continue
		}
		if p.loginGated[m.target] && (sessionKey == "" || !haveSession || sessionVal.Absent) {
			continue
		}
		key := elements.MakeKey(m.target, m.id)
		if seen[key] {
			continue
		}
		seen[key] = true
		toFetch = append(toFetch, key)
	}

	if len(toFetch) > 0 {
		fetched, err := p.store.Get(ctx, toFetch, req)
		if err == nil {
			for key, val := range fetched {
				kind, id, ok := elements.Split(key)
				if !ok {
					continue
				}
				if _, ok := fragments[kind]; !ok {
					fragments[kind] = map[string]string{}
				}
				fragments[kind][id] = val.Scalar()
			}
		}
	}

	// 5. Render.
	start := time.Now()
	body := pageVal.Clone().Bytes
	rendered := p.evaluator.Render(ctx, body, fragments)
	if p.metrics != nil {
		p.metrics.RenderSeconds.Observe(time.Since(start).Seconds())
	}

	headers := http.Header{}
	if pageVal.ContentType != "" {
		headers.Set("Content-Type", pageVal.ContentType)
	}
	status := pageVal.Status
	if status == 0 {
		status = http.StatusOK
	}
	p.bumpOutcome("served")
	return p.finalize(&model.Response{Status: status, Headers: headers, Body: rendered})
}

// finalize applies the downstream response contract common to every
// branch: Via header, Connection: close, stripped internal
// headers, recomputed Content-Length.
func (p *Pipeline) finalize(resp *model.Response) *model.Response {
	if resp.Headers == nil {
		resp.Headers = http.Header{}
	}
	resp.Headers.Del(p.cfg.CacheHeader)
	resp.Headers.Del(p.cfg.TwiceHeader)
	resp.Headers.Del(p.cfg.CookiesHeader)
	resp.Headers.Set("Via", "Twice 0.1")
	resp.Headers.Set("Connection", "close")
	resp.Headers.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	return resp
}

func (p *Pipeline) handlePurge(ctx context.Context, req *model.Request) *model.Response {
	kind := variantindex.Kind(req.Header(p.cfg.PurgeHeader))
	summary, err := p.purge.Purge(ctx, kind, req.Path)
	if err != nil {
		return p.finalize(&model.Response{Status: http.StatusInternalServerError, Body: []byte(err.Error())})
	}
	return p.finalize(&model.Response{Status: http.StatusOK, Body: []byte(summary)})
}

func (p *Pipeline) handleLiveness() *model.Response {
	now := float64(time.Now().UnixNano()) / 1e9
	return p.finalize(&model.Response{Status: http.StatusOK, Body: []byte(strconv.FormatFloat(now, 'f', 6, 64))})
}

func (p *Pipeline) bumpOutcome(outcome string) {
	if p.metrics == nil {
		return
	}
	p.metrics.RequestsTotal.WithLabelValues(outcome).Inc()
}

func isSupportedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodHead:
		return true
	default:
		return false
	}
}
