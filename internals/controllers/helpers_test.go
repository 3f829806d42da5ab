package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/eduardohgo/pry-lapape/internals/config"
	"github.com/eduardohgo/pry-lapape/internals/middleware"
	"github.com/eduardohgo/pry-lapape/internals/models"
	"github.com/eduardohgo/pry-lapape/internals/store"
	"github.com/eduardohgo/pry-lapape/internals/throttle"
	"github.com/eduardohgo/pry-lapape/internals/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testPassword = "Fuerte#123"

// fakeMailer records the last code sent per address so tests can consume it.
// Controllers send from goroutines, so reads go through waitCode.
type fakeMailer struct {
	mu          sync.Mutex
	verifyCodes map[string]string
	loginCodes  map[string]string
	resetCodes  map[string]string
	resetSent   int
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{
		verifyCodes: make(map[string]string),
		loginCodes:  make(map[string]string),
		resetCodes:  make(map[string]string),
	}
}

func (m *fakeMailer) SendVerificationCode(toEmail, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyCodes[toEmail] = code
	return nil
}

func (m *fakeMailer) SendLoginCode(toEmail, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginCodes[toEmail] = code
	return nil
}

func (m *fakeMailer) SendResetCode(toEmail, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCodes[toEmail] = code
	m.resetSent++
	return nil
}

func (m *fakeMailer) SendVerifiedNotice(toEmail, nombre string) error {
	return nil
}

func (m *fakeMailer) resetSentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetSent
}

// waitCode polls until a code for email shows up in codes, then consumes it.
func (m *fakeMailer) waitCode(t *testing.T, codes map[string]string, email string) string {
	t.Helper()
	var code string
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		code = codes[email]
		if code != "" {
			delete(codes, email)
		}
		return code != ""
	}, 2*time.Second, 10*time.Millisecond, "no code delivered for %s", email)
	return code
}

func (m *fakeMailer) takeVerifyCode(t *testing.T, email string) string {
	return m.waitCode(t, m.verifyCodes, email)
}

func (m *fakeMailer) takeLoginCode(t *testing.T, email string) string {
	return m.waitCode(t, m.loginCodes, email)
}

func (m *fakeMailer) takeResetCode(t *testing.T, email string) string {
	return m.waitCode(t, m.resetCodes, email)
}

// testEnv is a fully wired router over an in-memory database, with the
// mailer replaced by the recording fake and rate limiters left out.
type testEnv struct {
	t      *testing.T
	router *gin.Engine
	store  *store.Store
	mailer *fakeMailer
	tokens *utils.TokenManager
	google *GoogleAuthController
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A pooled second connection would see its own empty :memory: database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Session{}))

	cfg := &config.Config{
		AppName:              "La Pape",
		JWTSecret:            "flow-test-secret",
		SessionTTLMinutes:    120,
		VerifyCodeTTLMinutes: 15,
		OTPTTLMinutes:        10,
		Google:               config.GoogleConfig{ClientID: "test-client"},
	}
	logger := zap.NewNop()
	credStore := store.New(db)
	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.SessionTTLMinutes)
	mailer := newFakeMailer()

	authCtrl := NewAuthController(credStore, mailer, tokens, throttle.Default(), cfg, logger)
	googleCtrl := NewGoogleAuthController(credStore, tokens, cfg.Google, logger)
	authMiddleware := middleware.NewRequireAuthMiddleware(credStore, tokens, logger)

	r := gin.New()
	auth := r.Group("/auth")
	{
		auth.POST("/register", authCtrl.Register)
		auth.POST("/verify-email", authCtrl.VerifyEmail)
		auth.POST("/login", authCtrl.LoginStep1)
		auth.POST("/verify-2fa", authCtrl.Verify2FA)
		auth.POST("/verify-secret", authCtrl.VerifySecretQuestion)
		auth.POST("/forgot-password", authCtrl.ForgotPassword)
		auth.POST("/reset-password", authCtrl.ResetPassword)
		auth.POST("/login/google", googleCtrl.LoginWithToken)

		protected := auth.Group("/")
		protected.Use(authMiddleware.RequireAuth)
		{
			protected.PATCH("/login-method", authCtrl.UpdateLoginMethod)
			protected.POST("/logout", authCtrl.Logout)
			protected.GET("/me", authCtrl.Me)
		}
	}

	return &testEnv{
		t:      t,
		router: r,
		store:  credStore,
		mailer: mailer,
		tokens: tokens,
		google: googleCtrl,
	}
}

func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (e *testEnv) user(email string) *models.User {
	e.t.Helper()
	user, err := e.store.FindByEmail(context.Background(), email)
	require.NoError(e.t, err)
	return user
}

func (e *testEnv) save(user *models.User) {
	e.t.Helper()
	require.NoError(e.t, e.store.Save(context.Background(), user))
}

func (e *testEnv) register(nombre, email string) {
	e.t.Helper()
	w := e.do(http.MethodPost, "/auth/register", gin.H{
		"nombre":   nombre,
		"email":    email,
		"password": testPassword,
	}, "")
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
}

func (e *testEnv) verify(email string) {
	e.t.Helper()
	code := e.mailer.takeVerifyCode(e.t, email)
	w := e.do(http.MethodPost, "/auth/verify-email", gin.H{"email": email, "code": code}, "")
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
}

func (e *testEnv) registerVerified(nombre, email string) {
	e.t.Helper()
	e.register(nombre, email)
	e.verify(email)
}

func (e *testEnv) setLoginMethod(email string, method models.LoginMethod) {
	e.t.Helper()
	user := e.user(email)
	user.LoginMethod = method
	e.save(user)
}

// login2FA drives the full password + email-OTP sequence and returns the
// session token.
func (e *testEnv) login2FA(email string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/auth/login", gin.H{"email": email, "password": testPassword}, "")
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(e.t, "2fa", decode(e.t, w)["stage"])

	code := e.mailer.takeLoginCode(e.t, email)
	w = e.do(http.MethodPost, "/auth/verify-2fa", gin.H{"email": email, "code": code}, "")
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	token, _ := decode(e.t, w)["token"].(string)
	require.NotEmpty(e.t, token)
	return token
}

// loginPasswordOnly expects the single-step path and returns the token.
func (e *testEnv) loginPasswordOnly(email string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/auth/login", gin.H{"email": email, "password": testPassword}, "")
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	body := decode(e.t, w)
	require.Equal(e.t, "done", body["stage"])
	token, _ := body["token"].(string)
	require.NotEmpty(e.t, token)
	return token
}
