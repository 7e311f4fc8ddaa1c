// Package api wires the gin HTTP surface: the /ws upgrade route and the
// test-probe endpoints used for integration testing. Grounded on the
// teacher's cmd/main.go gin.New()+middleware chain and its
// checkWebSocketOrigin CORS handling in internal/handlers/websocket.go,
// narrowed to the routes the specification actually names.
package api

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/streamspace-dev/notify-push/internal/dispatch"
	"github.com/streamspace-dev/notify-push/internal/logger"
	"github.com/streamspace-dev/notify-push/internal/metrics"
	"github.com/streamspace-dev/notify-push/internal/session"
	"github.com/streamspace-dev/notify-push/internal/storagemapping"
	"github.com/streamspace-dev/notify-push/internal/versionkv"
)

// Server bundles the collaborators the HTTP surface needs.
type Server struct {
	SessionDeps session.Deps
	Dispatcher  *dispatch.Dispatcher
	Metrics     *metrics.Collector
	Mapping     *storagemapping.Registry
	Announcer   *versionkv.Announcer

	upgrader websocket.Upgrader
}

// NewRouter builds the gin engine serving /ws and the test-probe routes.
func NewRouter(s *Server) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(ginLogger())

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}

	router.GET("/ws", s.handleWebSocket)
	router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	test := router.Group("/test")
	test.GET("/cookie", s.handleCookieTest)
	test.GET("/reverse_cookie", s.handleReverseCookieTest)
	test.GET("/mapping/:storage_id", s.handleMappingTest)
	test.GET("/remote/:ip", s.handleRemoteTest)
	test.POST("/version", s.handleVersionTest)

	return router
}

const requestIDHeader = "X-Request-Id"

// requestID stamps every request with a correlation id, reusing one the
// caller already supplied so a request traced through an upstream proxy
// keeps the same id in this server's logs.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.HTTP().Info().
			Str("request_id", c.GetString(requestIDHeader)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// checkOrigin allows every origin when CORS_ALLOWED_ORIGINS is unset and
// otherwise only the listed origins, same shape as the teacher's
// checkWebSocketOrigin: no Origin header (non-browser clients) is always
// allowed.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowed == "" {
		return true
	}
	for _, o := range strings.Split(allowed, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

func clientIPChain(r *http.Request) []string {
	var chain []string
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			chain = append(chain, strings.TrimSpace(ip))
		}
	}
	chain = append(chain, r.RemoteAddr)
	return chain
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.HTTP().Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := session.New(conn, s.SessionDeps, clientIPChain(c.Request))
	sess.Run(c.Request.Context())
}

// handleCookieTest reports the last value published via a TestCookie bus
// event, letting an operator confirm the bus round-trip end to end.
func (s *Server) handleCookieTest(c *gin.Context) {
	c.String(http.StatusOK, strconv.FormatUint(uint64(s.Dispatcher.TestCookie()), 10))
}

// handleReverseCookieTest is the inverse probe: it returns whatever value
// the client supplies, unchanged, so an operator can confirm this server
// instance (and not a stale peer) answered the request.
func (s *Server) handleReverseCookieTest(c *gin.Context) {
	c.String(http.StatusOK, c.Query("cookie"))
}

// handleMappingTest exercises the storage mapping collaborator directly,
// returning the resolved users for a storage_id + path pair as plain text,
// one per line.
func (s *Server) handleMappingTest(c *gin.Context) {
	if s.Mapping == nil {
		c.String(http.StatusServiceUnavailable, "storage mapping not configured")
		return
	}
	path := c.Query("path")
	users, err := s.Mapping.UsersForPath(c.Request.Context(), c.Param("storage_id"), path)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	lines := make([]string, len(users))
	for i, u := range users {
		lines[i] = u.String()
	}
	c.String(http.StatusOK, strings.Join(lines, "\n"))
}

// handleRemoteTest echoes back the IP path parameter unchanged. It does not
// read X-Forwarded-For or call the verifier.
func (s *Server) handleRemoteTest(c *gin.Context) {
	c.String(http.StatusOK, c.Param("ip"))
}

// handleVersionTest reports the protocol version currently announced to
// Redis, round-tripping through the key rather than just the in-process
// value so a misconfigured Redis connection is visible here too.
func (s *Server) handleVersionTest(c *gin.Context) {
	if s.Announcer == nil {
		c.String(http.StatusServiceUnavailable, "version announcer not configured")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	v, err := s.Announcer.CheckKey(ctx)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.String(http.StatusOK, v)
}
