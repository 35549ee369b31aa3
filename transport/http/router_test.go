package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	mrand "math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/hoopgate/adapters/events"
	"github.com/layer-3/hoopgate/adapters/ratelimit"
	"github.com/layer-3/hoopgate/adapters/store"
	"github.com/layer-3/hoopgate/adapters/tokenizer"
	"github.com/layer-3/hoopgate/codec"
	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/internal/gatetest"
	"github.com/layer-3/hoopgate/internal/metrics"
	"github.com/layer-3/hoopgate/physics"
	"github.com/layer-3/hoopgate/ports"
	"github.com/layer-3/hoopgate/service"
)

var (
	testSecret   = []byte("router-secret-0123456789")
	gDataPattern = regexp.MustCompile(`window\.G_DATA = ("[^"]*")`)
	tokenPattern = regexp.MustCompile(`window\.SESSION_TOKEN = ("[^"]*")`)
)

type echoShortener struct{}

func (echoShortener) Shorten(_ context.Context, longURL string) (string, error) {
	return "https://short.example/" + url.QueryEscape(longURL), nil
}

type echoFactory struct{}

func (echoFactory) For(string, string) ports.Shortener { return echoShortener{} }

type testServer struct {
	router *gin.Engine
	links  ports.LinkRepository
	now    time.Time
}

func newTestServer(t *testing.T, limit int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	ts := &testServer{now: time.Now()}
	clock := func() time.Time { return ts.now }

	kv := store.NewMemoryKV(time.Minute)
	st := store.NewKVStore(kv, clock)
	links := store.NewCachedLinks(store.NewKVLinks(kv))
	ts.links = links

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	gate := service.NewGateService(st, links, tokenizer.NewJWTTokenizer(key), events.NopPublisher{}, testSecret,
		service.WithClock(clock),
		service.WithRand(mrand.New(mrand.NewPCG(3, 5))),
		service.WithMetrics(m),
	)
	linkSvc := service.NewLinkService(links, echoShortener{}, echoFactory{}, m, 10*time.Second)

	router, err := SetupRouter(RouterConfig{
		Gate:     gate,
		Links:    linkSvc,
		Limiter:  ratelimit.NewMemoryLimiter(limit, 10*time.Minute),
		Metrics:  m,
		Gatherer: reg,
	})
	require.NoError(t, err)
	ts.router = router
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func postJSON(path string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func jsString(t *testing.T, re *regexp.Regexp, body string) string {
	t.Helper()
	m := re.FindStringSubmatch(body)
	require.NotNil(t, m, "page is missing %s", re)
	var s string
	require.NoError(t, json.Unmarshal([]byte(m[1]), &s))
	return s
}

func decodeGData(t *testing.T, body string) core.PublicChallenge {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(jsString(t, gDataPattern, body))
	require.NoError(t, err)
	var pc core.PublicChallenge
	require.NoError(t, json.Unmarshal(raw, &pc))
	return pc
}

func hitBlob(t *testing.T, pc core.PublicChallenge, key string, seed uint64) string {
	t.Helper()
	hoop := core.Hoop{X: pc.HoopX, Y: pc.HoopY}
	hidden := physics.Hidden(core.Physics{Gravity: pc.Gravity, PowerScale: pc.PowerScale}, physics.Derive(pc.ID, testSecret))
	shot := gatetest.Aim(hoop, physics.Screen{Width: 1920, Height: 1080}, hidden, 40)
	trace, duration := gatetest.HumanTrace(seed, 30)

	blob, err := codec.Encode(core.Attempt{
		Angle:        shot.Angle,
		Power:        shot.Power,
		DragDuration: duration,
		DragPath:     trace,
		ScreenWidth:  1920,
		ScreenHeight: 1080,
	}, key, pc.Nonce)
	require.NoError(t, err)
	return blob
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestEndToEndGate(t *testing.T) {
	ts := newTestServer(t, 50)

	// Generate a link
	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/generate?url=https://dest.example/file&wait=10", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var gen struct {
		Success bool                  `json:"success"`
		Data    service.GeneratedLink `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gen))
	require.True(t, gen.Success)
	assert.Equal(t, "http://example.com/final.html?id="+gen.Data.LinkID, gen.Data.Step2Link)

	// Landing page
	w = ts.do(httptest.NewRequest(http.MethodGet, gen.Data.MainLink, nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	token := jsString(t, tokenPattern, body)
	pc := decodeGData(t, body)
	assert.NotContains(t, body, "hidden")

	// Step one
	w = ts.do(postJSON("/api/basketball/validate", gin.H{
		"challengeId":  pc.ID,
		"sessionToken": token,
		"v":            hitBlob(t, pc, token, 1),
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	one := decodeJSON(t, w)
	assert.Equal(t, true, one["success"])
	assert.Equal(t, gen.Data.ShortenedLink, one["redirect"])

	// Step-two page
	req := httptest.NewRequest(http.MethodGet, gen.Data.Step2Link, nil)
	req.Header.Set("Referer", gen.Data.ShortenedLink)
	w = ts.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	final := decodeGData(t, w.Body.String())

	ts.now = ts.now.Add(11 * time.Second)

	// Step two
	w = ts.do(postJSON("/api/step2/validate", gin.H{
		"challengeId": final.ID,
		"linkId":      gen.Data.LinkID,
		"v":           hitBlob(t, final, gen.Data.LinkID, 2),
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://dest.example/file", decodeJSON(t, w)["destination"])

	// Metrics reflect the run
	w = ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `hoopgate_attempts_total{outcome="hit",step="two"} 1`)
}

func TestStepOneErrorMapping(t *testing.T) {
	ts := newTestServer(t, 50)

	w := ts.do(postJSON("/api/basketball/init", gin.H{}))
	require.Equal(t, http.StatusOK, w.Code)
	var pc core.PublicChallenge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pc))
	require.NotEmpty(t, pc.ID)

	w = ts.do(postJSON("/api/basketball/validate", gin.H{"challengeId": pc.ID, "v": "zz"}))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Handshake failed", decodeJSON(t, w)["error"])

	w = ts.do(postJSON("/api/basketball/validate", gin.H{"challengeId": pc.ID, "v": hitBlob(t, pc, "", 3)}))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Request expired", decodeJSON(t, w)["error"])

	w = ts.do(postJSON("/api/basketball/validate", gin.H{"challengeId": pc.ID}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStepOneMiss(t *testing.T) {
	ts := newTestServer(t, 50)

	w := ts.do(postJSON("/api/basketball/init", gin.H{}))
	require.Equal(t, http.StatusOK, w.Code)
	var pc core.PublicChallenge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pc))

	trace, duration := gatetest.HumanTrace(4, 30)
	blob, err := codec.Encode(core.Attempt{Angle: -1.5, Power: 1, DragDuration: duration, DragPath: trace}, "", pc.Nonce)
	require.NoError(t, err)

	w = ts.do(postJSON("/api/basketball/validate", gin.H{"challengeId": pc.ID, "v": blob}))
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeJSON(t, w)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "miss", out["error"])
}

func TestInitUsesRefererSlug(t *testing.T) {
	ts := newTestServer(t, 50)
	require.NoError(t, ts.links.Create(context.Background(), &core.Link{ID: "L1", Slug: "abc123", TargetURL: "https://d.example"}))

	req := postJSON("/api/basketball/init", gin.H{})
	req.Header.Set("Referer", "https://gate.example/?s=abc123")
	w := ts.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var pc core.PublicChallenge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pc))

	// Step two for L1 now finds the challenge but no session
	w = ts.do(postJSON("/api/step2/validate", gin.H{"challengeId": pc.ID, "linkId": "L1", "v": hitBlob(t, pc, "L1", 5)}))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Session expired", decodeJSON(t, w)["error"])
}

func TestStepTwoShield(t *testing.T) {
	ts := newTestServer(t, 50)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/final.html?id=L1", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Direct access not allowed")

	req := httptest.NewRequest(http.MethodGet, "/final.html", nil)
	req.Header.Set("Referer", "https://short.example/x")
	w = ts.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/final.html?id=L1", nil)
	req.Header.Set("Referer", "https://short.example/x")
	w = ts.do(req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "complete Step 1")
}

func TestGenerateRateLimited(t *testing.T) {
	ts := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		w := ts.do(postJSON("/api/generate", gin.H{"targetUrl": "https://dest.example"}))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := ts.do(postJSON("/api/generate", gin.H{"targetUrl": "https://dest.example"}))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestGenerateValidation(t *testing.T) {
	ts := newTestServer(t, 50)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/generate", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing targetUrl", decodeJSON(t, w)["error"])

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/getlink?url=https://dest.example", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing params", decodeJSON(t, w)["error"])

	for _, body := range []string{`{"targetUrl": `, `{"targetUrl": "https://dest.example", "wait": 10.5}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		w = ts.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "Invalid request", decodeJSON(t, w)["error"])
	}

	w = ts.do(postJSON("/api/getlink", gin.H{"api": "tok", "site": "s.example", "url": "https://dest.example", "wait": "20"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeJSON(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(20), data["minWaitTime"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 50)
	w := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}
