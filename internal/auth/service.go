package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ferryline/internal/shared/config"
	"ferryline/internal/shared/constants"
	"ferryline/internal/shared/middleware"
	"ferryline/internal/users"
	"ferryline/pkg/cache"
	"ferryline/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionsDisabled   = errors.New("sessions require redis")
)

type Service interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error
	ValidateToken(tokenString string) (*JWTClaims, error)
	GetUser(ctx context.Context, userID string) (*UserResponse, error)

	// Cookie sessions for the web adapter.
	OpenSession(ctx context.Context, req *LoginRequest) (sessionID string, resp *SessionResponse, err error)
	CloseSession(ctx context.Context, sessionID string) error
	ResolveSession(ctx context.Context, sessionID string) (*middleware.Actor, error)
}

type service struct {
	repo   Repository
	config *config.Config
	cache  cache.Service
	log    *logger.Logger
}

// NewService wires the auth service. cacheService may be nil, in which case
// cookie sessions are unavailable and only bearer tokens work.
func NewService(repo Repository, cfg *config.Config, cacheService cache.Service) Service {
	return &service{
		repo:   repo,
		config: cfg,
		cache:  cacheService,
		log:    logger.GetDefault(),
	}
}

func (s *service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	exists, err := s.repo.PhoneExists(ctx, req.Phone)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// Staff and admins are provisioned, never self-registered
	role := users.Role(strings.ToUpper(req.Role))
	if role == "" || !users.SelfRegisterable(role) {
		role = users.RolePublic
	}

	user := &users.User{
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Password:   string(hashedPassword),
		Role:       role,
		AgencyName: req.AgencyName,
		IsActive:   true,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return s.authResponse(user)
}

func (s *service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.checkCredentials(ctx, req)
	if err != nil {
		return nil, err
	}
	s.log.LogAuthSuccess(ctx, user.ID.String(), "password")
	return s.authResponse(user)
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validateToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != "refresh" {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	return s.generateTokenPair(user)
}

func (s *service) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.repo.UpdateUserPassword(ctx, userID, string(hashedPassword))
}

func (s *service) ValidateToken(tokenString string) (*JWTClaims, error) {
	return s.validateToken(tokenString)
}

func (s *service) GetUser(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *service) OpenSession(ctx context.Context, req *LoginRequest) (string, *SessionResponse, error) {
	if s.cache == nil {
		return "", nil, ErrSessionsDisabled
	}

	user, err := s.checkCredentials(ctx, req)
	if err != nil {
		return "", nil, err
	}

	sess := session{
		UserID:    user.ID.String(),
		Role:      string(user.Role),
		CreatedAt: time.Now().UTC(),
	}
	if owner := user.EffectiveOwnerID(); owner != nil {
		sess.OwnerID = owner.String()
	}

	sessionID := uuid.NewString()
	if err := s.cache.Set(ctx, constants.BuildSessionKey(sessionID), sess, s.config.Redis.SessionTTL); err != nil {
		return "", nil, err
	}
	s.log.LogAuthSuccess(ctx, user.ID.String(), "session")

	return sessionID, &SessionResponse{
		User:      toUserResponse(user),
		ExpiresIn: int64(s.config.Redis.SessionTTL.Seconds()),
	}, nil
}

func (s *service) CloseSession(ctx context.Context, sessionID string) error {
	if s.cache == nil {
		return ErrSessionsDisabled
	}
	return s.cache.Delete(ctx, constants.BuildSessionKey(sessionID))
}

// ResolveSession loads a session and slides its expiry.
func (s *service) ResolveSession(ctx context.Context, sessionID string) (*middleware.Actor, error) {
	if s.cache == nil {
		return nil, ErrSessionsDisabled
	}

	key := constants.BuildSessionKey(sessionID)
	var sess session
	if err := s.cache.Get(ctx, key, &sess); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	userID, err := uuid.Parse(sess.UserID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	actor := &middleware.Actor{
		UserID:        userID,
		Role:          users.Role(sess.Role),
		Authenticated: true,
	}
	if ownerID, err := uuid.Parse(sess.OwnerID); err == nil {
		actor.OwnerID = &ownerID
	}

	if _, err := s.cache.Touch(ctx, key, s.config.Redis.SessionTTL); err != nil {
		s.log.WarnContext(ctx, "failed to extend session", "error", err)
	}
	return actor, nil
}

func (s *service) checkCredentials(ctx context.Context, req *LoginRequest) (*users.User, error) {
	user, err := s.repo.GetUserByPhone(ctx, req.Phone)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.log.LogAuthFailure(ctx, "unknown account", req.Phone)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.log.LogAuthFailure(ctx, "wrong password", req.Phone)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *service) authResponse(user *users.User) (*AuthResponse, error) {
	tokenPair, err := s.generateTokenPair(user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		User:         toUserResponse(user),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

func (s *service) generateTokenPair(user *users.User) (*TokenPair, error) {
	now := time.Now()
	userID := user.ID.String()
	ownerID := ""
	if owner := user.EffectiveOwnerID(); owner != nil {
		ownerID = owner.String()
	}

	sign := func(tokenType string, ttl time.Duration) (string, error) {
		claims := JWTClaims{
			UserID:  userID,
			Phone:   user.Phone,
			Role:    string(user.Role),
			OwnerID: ownerID,
			Type:    tokenType,
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
				Issuer:    s.config.JWT.Issuer,
				Subject:   userID,
			},
		}
		return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWT.Secret))
	}

	accessToken, err := sign("access", s.config.JWT.JWTExpiresIn)
	if err != nil {
		return nil, err
	}
	refreshToken, err := sign("refresh", s.config.JWT.RefreshExpiresIn)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.JWT.JWTExpiresIn.Seconds()),
	}, nil
}

func (s *service) validateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWT.Secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
