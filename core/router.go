package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

// NewRouter constructs the Gin engine with routes wired. health may be nil in tests.
func NewRouter(cfg Config, accounts AccountManager, tokens TokenVerifier, health *HealthChecker, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(RequestLogger(logger), gin.Recovery())
	r.Use(OriginRefererMiddleware(cfg))

	r.GET("/healthz", func(c *gin.Context) {
		if health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		st := health.Collect(c.Request.Context())
		code := http.StatusOK
		if !st.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, st)
	})

	limited := NewRateLimiter(cfg.RateLimitRPM).Handler()

	acc := r.Group("/account")
	{
		acc.POST("/login", limited, func(c *gin.Context) {
			var req loginRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "invalid json")
				return
			}
			res, err := accounts.Authenticate(c.Request.Context(), req.UserName, req.Password)
			if err != nil {
				writeServiceError(c, logger, err, http.StatusBadRequest)
				return
			}
			c.JSON(http.StatusOK, res)
		})

		acc.POST("/register", limited, func(c *gin.Context) {
			var req RegisterInput
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "invalid json")
				return
			}
			if _, err := accounts.Register(c.Request.Context(), req); err != nil {
				writeServiceError(c, logger, err, http.StatusBadRequest)
				return
			}
			c.Status(http.StatusOK)
		})

		authed := acc.Group("", BearerAuth(tokens))

		authed.GET("", func(c *gin.Context) {
			views, err := accounts.List(c.Request.Context())
			if err != nil {
				writeServiceError(c, logger, err, http.StatusBadRequest)
				return
			}
			c.JSON(http.StatusOK, views)
		})

		authed.GET("/:id", func(c *gin.Context) {
			id, ok := idParam(c)
			if !ok {
				return
			}
			view, err := accounts.Get(c.Request.Context(), id)
			if err != nil {
				writeServiceError(c, logger, err, http.StatusNotFound)
				return
			}
			c.JSON(http.StatusOK, view)
		})

		authed.PUT("/:id", func(c *gin.Context) {
			id, ok := idParam(c)
			if !ok {
				return
			}
			var req UpdateInput
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "invalid json")
				return
			}
			if err := accounts.Update(c.Request.Context(), id, req); err != nil {
				writeServiceError(c, logger, err, http.StatusBadRequest)
				return
			}
			c.Status(http.StatusOK)
		})

		authed.DELETE("/:id", func(c *gin.Context) {
			id, ok := idParam(c)
			if !ok {
				return
			}
			if err := accounts.Delete(c.Request.Context(), id); err != nil {
				writeServiceError(c, logger, err, http.StatusBadRequest)
				return
			}
			c.Status(http.StatusOK)
		})
	}

	return r
}
