package routes

import (
	"github.com/eduardohgo/pry-lapape/internals/config"
	"github.com/eduardohgo/pry-lapape/internals/controllers"
	"github.com/eduardohgo/pry-lapape/internals/middleware"
	"github.com/eduardohgo/pry-lapape/internals/store"
	"github.com/eduardohgo/pry-lapape/internals/throttle"
	"github.com/eduardohgo/pry-lapape/internals/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter builds every component by constructor injection and mounts the
// auth API. rdb may be nil, which disables the per-IP rate limiters.
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	r := gin.Default()

	credStore := store.New(db)
	tokenManager := utils.NewTokenManager(cfg.JWTSecret, cfg.SessionTTLMinutes)
	emailManager := utils.NewEmailManager(cfg.SMTP, cfg.AppName, cfg.OTPTTLMinutes, logger)
	throttleCfg := throttle.Default()

	authMiddleware := middleware.NewRequireAuthMiddleware(credStore, tokenManager, logger)
	limiter := middleware.NewRateLimiter(rdb, logger)

	authCtrl := controllers.NewAuthController(credStore, emailManager, tokenManager, throttleCfg, cfg, logger)
	googleCtrl := controllers.NewGoogleAuthController(credStore, tokenManager, cfg.Google, logger)

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "active",
			"message": cfg.AppName + " auth API is running",
		})
	})

	auth := r.Group("/auth")
	{
		auth.POST("/register", authCtrl.Register)
		auth.POST("/verify-email", authCtrl.VerifyEmail)

		auth.POST("/login", limiter.Limit("login", cfg.LoginRateLimit), authCtrl.LoginStep1)
		auth.POST("/verify-2fa", authCtrl.Verify2FA)
		auth.POST("/verify-secret", authCtrl.VerifySecretQuestion)

		auth.POST("/forgot-password", limiter.Limit("forgot", cfg.ForgotRateLimit), authCtrl.ForgotPassword)
		auth.POST("/reset-password", authCtrl.ResetPassword)

		auth.POST("/login/google", limiter.Limit("login", cfg.LoginRateLimit), googleCtrl.LoginWithToken)
		auth.GET("/google/login", googleCtrl.Login)
		auth.GET("/google/callback", googleCtrl.Callback)

		protected := auth.Group("/")
		protected.Use(authMiddleware.RequireAuth)
		{
			protected.PATCH("/login-method", authCtrl.UpdateLoginMethod)
			protected.POST("/logout", authCtrl.Logout)
			protected.GET("/me", authCtrl.Me)
		}
	}

	return r
}
