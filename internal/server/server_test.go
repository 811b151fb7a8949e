package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twicecache/twice/internal/model"
)

type fakePipeline struct {
	lastReq *model.Request
	resp    *model.Response
}

func (f *fakePipeline) Handle(ctx context.Context, req *model.Request) *model.Response {
	f.lastReq = req
	return f.resp
}

func TestHandlerAdaptsRequestAndWritesResponse(t *testing.T) {
	pipeline := &fakePipeline{resp: &model.Response{
		Status:  http.StatusOK,
		Headers: http.Header{"Content-Type": []string{"text/html"}},
		Body:    []byte("hello"),
	}}
	h := newHandler(pipeline, nil)

	req := httptest.NewRequest(http.MethodGet, "/a?x=1", strings.NewReader(""))
	req.Header.Set("Cookie", "uid=42; lang=en")
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "close", rec.Header().Get("Connection"))
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))

	require.NotNil(t, pipeline.lastReq)
	assert.Equal(t, "/a?x=1", pipeline.lastReq.Path)
	assert.Equal(t, "42", pipeline.lastReq.Cookies["uid"])
}

func TestHandlerHonorsRealHostHeader(t *testing.T) {
	pipeline := &fakePipeline{resp: &model.Response{Status: http.StatusOK}}
	h := newHandler(pipeline, nil)

	req := httptest.NewRequest(http.MethodGet, "/a", nil)
	req.Header.Set("X-Real-Host", "origin.internal")
	rec := httptest.NewRecorder()
	h(rec, req)

	require.NotNil(t, pipeline.lastReq)
	assert.Equal(t, "origin.internal", pipeline.lastReq.EffectiveHost())
}
