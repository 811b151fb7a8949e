// Package evaluator rewrites `command target args…` markers against a
// per-request fragment map, caching parsed marker token lists keyed by
// their raw marker payload so a repeated marker is not re-parsed.
package evaluator

import (
	"context"
	"log/slog"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FragmentMap is the per-request map built by the pipeline: kind name ->
// (id or field name) -> value ("per-request fragment map").
// The "session" kind is keyed by field name (one session per request);
// every fragment kind is keyed by element id.
type FragmentMap map[string]map[string]string

// SideEffects performs the write side effects the "incr"/"decr"
// commands trigger against a fragment kind's authoritative source.
// Only kv-backed fragment kinds implement these meaningfully; calling
// them against a kind that doesn't should return an error, which the
// evaluator treats as "nothing to do" — commands always emit empty
// regardless of side-effect success.
type SideEffects interface {
	Increment(ctx context.Context, kind, id string) (newValue string, err error)
	Decrement(ctx context.Context, kind, id string) (newValue string, err error)
	SetIfAbsent(ctx context.Context, kind, id, value string) error
}

// Evaluator renders cached bodies by substituting markers.
type Evaluator struct {
	pattern *regexp.Regexp
	cache   *lru.Cache[string, []string]
	effects SideEffects
	logger  *slog.Logger
}

// New compiles pattern (must have exactly one capture group, the
// marker's payload) and builds an Evaluator with a bounded parse cache.
func New(pattern string, parseCacheSize int, effects SideEffects, logger *slog.Logger) (*Evaluator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if parseCacheSize <= 0 {
		parseCacheSize = 512
	}
	cache, err := lru.New[string, []string](parseCacheSize)
	if err != nil {
		return nil, err
	}
	return &Evaluator{pattern: re, cache: cache, effects: effects, logger: logger}, nil
}

// Render performs exactly one left-to-right pass over body, replacing
// every marker match. Substituted text is never re-scanned because
// regexp.ReplaceAllFunc only ever matches against the original input. A
// body with no markers is returned unchanged.
func (e *Evaluator) Render(ctx context.Context, body []byte, fragments FragmentMap) []byte {
	return e.pattern.ReplaceAllFunc(body, func(match []byte) []byte {
		sub := e.pattern.FindSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		payload := string(sub[1])

		tokens, ok := e.cache.Get(payload)
		if !ok {
			tokens = tokenize(payload)
			e.cache.Add(payload, tokens)
		}

		out, ok := e.eval(ctx, tokens, fragments)
		if !ok {
			// Parse failure or unknown command: fail-open, emit verbatim.
			return match
		}
		return []byte(out)
	})
}

func (e *Evaluator) eval(ctx context.Context, tokens []string, fragments FragmentMap) (string, bool) {
	if len(tokens) == 0 {
		return "", false
	}
	switch tokens[0] {
	case "get":
		return e.evalGet(tokens, fragments)
	case "if":
		return e.evalIf(tokens, fragments, false)
	case "unless":
		return e.evalIf(tokens, fragments, true)
	case "incr":
		return e.evalIncrDecr(ctx, tokens, fragments, true)
	case "decr":
		return e.evalIncrDecr(ctx, tokens, fragments, false)
	default:
		return "", false
	}
}

func (e *Evaluator) evalGet(tokens []string, fragments FragmentMap) (string, bool) {
	if len(tokens) < 3 {
		return "", false
	}
	target, arg1 := tokens[1], tokens[2]
	arg2 := ""
	if len(tokens) >= 4 {
		arg2 = tokens[3]
	}
	if val, ok := lookup(fragments, target, arg1); ok && truthy(val) {
		return val, true
	}
	return arg2, true
}

func (e *Evaluator) evalIf(tokens []string, fragments FragmentMap, invert bool) (string, bool) {
	if len(tokens) < 4 {
		return "", false
	}
	target, arg1, arg2 := tokens[1], tokens[2], tokens[3]
	arg3 := ""
	if len(tokens) >= 5 {
		arg3 = tokens[4]
	}
	val, _ := lookup(fragments, target, arg1)
	cond := truthy(val)
	if invert {
		cond = !cond
	}
	if cond {
		return arg2, true
	}
	return arg3, true
}

func (e *Evaluator) evalIncrDecr(ctx context.Context, tokens []string, fragments FragmentMap, incr bool) (string, bool) {
	if len(tokens) < 3 {
		return "", false
	}
	target, id := tokens[1], tokens[2]
	var fallback string
	hasFallback := len(tokens) >= 4
	if hasFallback {
		fallback = tokens[3]
	}

	_, present := lookup(fragments, target, id)
	if e.effects == nil {
		return "", true
	}

	if present {
		var newVal string
		var err error
		if incr {
			newVal, err = e.effects.Increment(ctx, target, id)
		} else {
			newVal, err = e.effects.Decrement(ctx, target, id)
		}
		if err != nil {
			e.logger.Warn("template side effect failed", "command", tokens[0], "target", target, "id", id, "error", err)
			return "", true
		}
		if m, ok := fragments[target]; ok {
			m[id] = newVal
		}
		return "", true
	}

	if hasFallback {
		if err := e.effects.SetIfAbsent(ctx, target, id, fallback); err != nil {
			e.logger.Warn("template side effect failed", "command", tokens[0], "target", target, "id", id, "error", err)
		}
	}
	return "", true
}

func lookup(fragments FragmentMap, kind, key string) (string, bool) {
	m, ok := fragments[kind]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

// truthy implements "non-empty, non-zero, non-null".
func truthy(s string) bool {
	return s != "" && s != "0"
}
