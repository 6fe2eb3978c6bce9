package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/DhimiMohamed/taskmanager/account"
	"github.com/DhimiMohamed/taskmanager/server/api"
	"github.com/DhimiMohamed/taskmanager/store"
)

var validate = validator.New()

// signToken issues an HS256 access token whose subject is the user id.
func signToken(secret string, userID int64, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// verifyToken validates an access token and returns its user id.
func verifyToken(secret, token string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	return id, nil
}

// generateSecret creates a random 32-byte secret.
func generateSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// jwtSecret returns the configured JWT secret, generating one if empty.
// Generated secrets do not survive a restart, so tokens are invalidated.
func (s *Server) jwtSecret() string {
	if s.cfg.Auth.JWTSecret != "" {
		return s.cfg.Auth.JWTSecret
	}
	s.secretOnce.Do(func() {
		s.generatedSecret = generateSecret()
	})
	return s.generatedSecret
}

// readJSON decodes and validates a request body, writing the 400 itself.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}

// mail sends through the configured mailer, logging failures.
func (s *Server) mail(r *http.Request, to, subject, body string) {
	if s.handlers.Mailer == nil {
		return
	}
	if err := s.handlers.Mailer.Send(r.Context(), to, subject, body); err != nil {
		s.logger.Warn("send email failed", slog.String("subject", subject), slog.Any("err", err))
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterRequest
	if !readJSON(w, r, &req) {
		return
	}
	u, err := s.handlers.Accounts.Register(r.Context(), req)
	if errors.Is(err, store.ErrConflict) {
		writeJSONError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		s.logger.Error("register", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not register")
		return
	}
	s.mail(r, u.Email, "Verify your email",
		"Confirm your account by opening /api/auth/verify/"+u.VerifyToken)
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":    u,
		"message": "Registration successful. Check your email to verify your account.",
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	u, err := s.handlers.Accounts.Verify(r.Context(), r.PathValue("token"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "invalid verification token")
		return
	}
	if err != nil {
		s.logger.Error("verify email", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not verify")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Email verified.", "user": u})
}

// loginRequest is the body accepted by POST /api/auth/login.
type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// loginResponse is the body returned by a successful login.
type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *account.User `json:"user"`
}

// handleLogin validates credentials and issues a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !readJSON(w, r, &req) {
		return
	}
	u, err := s.handlers.Accounts.Authenticate(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case errors.Is(err, account.ErrNotVerified):
		writeJSONError(w, http.StatusForbidden, "email not verified")
		return
	case err != nil:
		s.logger.Error("authenticate", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not authenticate")
		return
	}

	now := time.Now()
	token, err := signToken(s.jwtSecret(), u.ID, now, s.cfg.Auth.TokenTTL)
	if err != nil {
		s.logger.Error("sign jwt", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: now.Add(s.cfg.Auth.TokenTTL).UTC(), User: u})
}

// handleResetRequest mails a reset code. The reply is the same whether or
// not the email is registered.
func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	u, otp, err := s.handlers.Accounts.RequestReset(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		s.logger.Error("request password reset", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not issue reset code")
		return
	}
	if u != nil {
		s.mail(r, u.Email, "Password reset code",
			fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", otp.Code, int(account.OTPTTL.Minutes())))
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "If the email is registered, a reset code has been sent."})
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

func (s *Server) handleResetVerify(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !readJSON(w, r, &req) {
		return
	}
	if _, err := s.handlers.Accounts.CheckOTP(r.Context(), strings.ToLower(req.Email), req.OTP); err != nil {
		writeJSONError(w, http.StatusBadRequest, account.ErrInvalidOTP.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Code is valid."})
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		otpRequest
		NewPassword string `json:"new_password" validate:"required,min=8"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	err := s.handlers.Accounts.ResetPassword(r.Context(), strings.ToLower(req.Email), req.OTP, req.NewPassword)
	if errors.Is(err, account.ErrInvalidOTP) {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("reset password", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not reset password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset."})
}

// handleMe returns the currently authenticated user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.handlers.Accounts.Store.GetUser(r.Context(), api.UserID(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("load current user", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not load user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// bearerToken returns the token from the Authorization header, or "".
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// authMiddleware enforces JWT authentication on wrapped handlers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		uid, err := verifyToken(s.jwtSecret(), token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
			return
		}
		ctx := api.WithUserID(r.Context(), uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
