package middleware

import (
	"net/http"
	"strings"
	"time"

	"casino-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := c.Query("token")
		return token, token != ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("session_id", claims.SessionID)

		c.Next()
	}
}

// ServiceAuthMiddleware guards the routes the compute service calls back on.
func ServiceAuthMiddleware(jwtService *services.JWTService, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := jwtService.ValidateServiceToken(tokenString)
		if err != nil {
			log.WithError(err).WithField("path", c.FullPath()).Warn("rejected service call")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid service token"})
			return
		}

		c.Set("service", claims.Service)
		c.Next()
	}
}

type rateRule struct {
	action string
	limit  int
	window time.Duration
}

func ruleFor(c *gin.Context) (rateRule, bool) {
	if c.Request.Method != http.MethodPost {
		return rateRule{}, false
	}
	path := c.FullPath()
	switch {
	case strings.HasSuffix(path, "/blackjack/games"):
		return rateRule{action: "bet", limit: services.DefaultRateLimitBets, window: time.Minute}, true
	case strings.Contains(path, "/blackjack/games/:id/"):
		return rateRule{action: "step", limit: services.DefaultRateLimitSteps, window: time.Minute}, true
	}
	return rateRule{}, false
}

func RateLimitMiddleware(limiter services.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64("user_id")
		if userID == 0 {
			c.Next()
			return
		}

		rule, ok := ruleFor(c)
		if !ok {
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), userID, rule.action, rule.limit, rule.window)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       services.ErrRateLimited.Error(),
				"retry_after": rule.window.Seconds(),
			})
			return
		}

		c.Next()
	}
}
