package evaluator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPattern = `<%%\s+(.*?)\s+%%>`

func TestRenderIdempotentWithNoMarkers(t *testing.T) {
	e, err := New(testPattern, 16, nil, nil)
	require.NoError(t, err)
	body := []byte("plain body, no markers here")
	assert.Equal(t, body, e.Render(context.Background(), body, FragmentMap{}))
}

func TestRenderGetAndIf(t *testing.T) {
	e, err := New(testPattern, 16, nil, nil)
	require.NoError(t, err)
	body := []byte(`Hi <%% get session name guest %%>! <%% if session admin "yes" "no" %%>`)
	fragments := FragmentMap{"session": {"name": "Ada", "admin": ""}}
	out := e.Render(context.Background(), body, fragments)
	assert.Equal(t, "Hi Ada! no", string(out))
}

func TestRenderGetFallsBackToDefaultWhenAbsent(t *testing.T) {
	e, err := New(testPattern, 16, nil, nil)
	require.NoError(t, err)
	body := []byte(`<%% get favorite top %%>`)
	out := e.Render(context.Background(), body, FragmentMap{})
	assert.Equal(t, "", string(out))
}

func TestRenderUnlessMirrorsIf(t *testing.T) {
	e, err := New(testPattern, 16, nil, nil)
	require.NoError(t, err)
	body := []byte(`<%% unless session admin "members" "guests" %%>`)
	fragments := FragmentMap{"session": {"admin": ""}}
	out := e.Render(context.Background(), body, fragments)
	assert.Equal(t, "members", string(out))
}

func TestRenderUnknownCommandEmittedVerbatim(t *testing.T) {
	e, err := New(testPattern, 16, nil, nil)
	require.NoError(t, err)
	body := []byte(`<%% bogus session name %%>`)
	out := e.Render(context.Background(), body, FragmentMap{})
	assert.Equal(t, string(body), string(out))
}

func TestRenderBadArityEmittedVerbatim(t *testing.T) {
	e, err := New(testPattern, 16, nil, nil)
	require.NoError(t, err)
	body := []byte(`<%% if session %%>`)
	out := e.Render(context.Background(), body, FragmentMap{})
	assert.Equal(t, string(body), string(out))
}

func TestRenderDoesNotRescanSubstitutedText(t *testing.T) {
	e, err := New(testPattern, 16, nil, nil)
	require.NoError(t, err)
	// The substituted value itself looks like a marker; it must survive
	// untouched since substitution is a single pass over the original body.
	body := []byte(`<%% get kv top %%>`)
	fragments := FragmentMap{"kv": {"top": "<%% get kv top %%>"}}
	out := e.Render(context.Background(), body, fragments)
	assert.Equal(t, `<%% get kv top %%>`, string(out))
}

type fakeEffects struct {
	incrReturn string
	incrErr    error
	setCalls   []string
}

func (f *fakeEffects) Increment(ctx context.Context, kind, id string) (string, error) {
	return f.incrReturn, f.incrErr
}
func (f *fakeEffects) Decrement(ctx context.Context, kind, id string) (string, error) {
	return f.incrReturn, f.incrErr
}
func (f *fakeEffects) SetIfAbsent(ctx context.Context, kind, id, value string) error {
	f.setCalls = append(f.setCalls, kind+"_"+id+"="+value)
	return nil
}

func TestIncrBumpsLocalMapAndEmitsEmpty(t *testing.T) {
	effects := &fakeEffects{incrReturn: "8"}
	e, err := New(testPattern, 16, effects, nil)
	require.NoError(t, err)
	fragments := FragmentMap{"kv": {"counter": "7"}}
	out := e.Render(context.Background(), []byte(`<%% incr kv counter %%>`), fragments)
	assert.Equal(t, "", string(out))
	assert.Equal(t, "8", fragments["kv"]["counter"])
}

func TestIncrCallsSetIfAbsentWhenMissingWithFallback(t *testing.T) {
	effects := &fakeEffects{}
	e, err := New(testPattern, 16, effects, nil)
	require.NoError(t, err)
	out := e.Render(context.Background(), []byte(`<%% incr kv counter 5 %%>`), FragmentMap{})
	assert.Equal(t, "", string(out))
	assert.Equal(t, []string{"kv_counter=5"}, effects.setCalls)
}
