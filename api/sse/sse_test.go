package sse_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/api/sse"
	"github.com/JassinAlSafe/gamerfie-sub001/cache"
	"github.com/JassinAlSafe/gamerfie-sub001/config"
	mw "github.com/JassinAlSafe/gamerfie-sub001/middleware"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"github.com/JassinAlSafe/gamerfie-sub001/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupServer(t *testing.T) (*httptest.Server, cache.Cache, cache.PubSub, config.SecurityConfig) {
	t.Helper()
	kv, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := sse.NewHandler(ps, kv, sec, logger)
	r.GET("/api/sse", h.Stream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, kv, ps, sec
}

func authToken(t *testing.T, kv cache.Cache, sec config.SecurityConfig, userID int64) string {
	t.Helper()
	token, err := mw.GenerateToken(userID, sec.JWTSecret, sec.JWTTTLH)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), "session:"+token, "1", time.Hour))
	return token
}

func TestStreamRejectsMissingToken(t *testing.T) {
	srv, _, _, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/api/sse")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamRejectsUnknownSession(t *testing.T) {
	srv, _, _, sec := setupServer(t)

	// Valid JWT but no session entry in the cache.
	token, err := mw.GenerateToken(1, sec.JWTSecret, sec.JWTTTLH)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/sse?token=" + token)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamDeliversFeedChanges(t *testing.T) {
	srv, kv, ps, sec := setupServer(t)
	token := authToken(t, kv, sec, 7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sse?token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the handler a beat to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, ps.Publish(context.Background(), notify.FeedChannel(7),
		`{"resource":"activity_event","op":"upsert","row":{"id":1}}`))

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			assert.Contains(t, line, `"activity_event"`)
			return
		}
	}
	t.Fatal("no data line received")
}
