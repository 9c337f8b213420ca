package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"patapesa/internal/metrics"
	"patapesa/internal/model"
	"patapesa/internal/repository"
	"patapesa/internal/rewards"
	"patapesa/internal/utils"

	"go.uber.org/zap"
)

var (
	ErrUserAlreadyExists  = repository.ErrUserAlreadyExists
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidPassword    = errors.New("incorrect password for this username")
	ErrTooManyAttempts    = errors.New("too many login attempts, please try again later")
)

const referralCodeAttempts = 5

// LoginLimiter throttles login attempts per username. *ratelimit.Limiter
// implements it.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
	RetryAfter(ctx context.Context, key string) (time.Duration, error)
}

// RateLimitError is returned by Login once a username is throttled.
// errors.Is matches it against ErrTooManyAttempts.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return ErrTooManyAttempts.Error() }

func (e *RateLimitError) Unwrap() error { return ErrTooManyAttempts }

// UserService provides registration, authentication and profile services
type UserService interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, string, error)
	Login(ctx context.Context, username, password string) (*model.User, string, error)
	List(ctx context.Context) ([]model.User, error)
	Profile(ctx context.Context, userID string) (*model.User, error)
	UpdatePoints(ctx context.Context, userID string, points int64) (int64, error)
	ReferralStats(ctx context.Context, userID string) (*model.ReferralStats, error)
	ResetPassword(ctx context.Context, req model.ResetPasswordRequest) error
	Activate(ctx context.Context, userID string) (*model.User, error)
}

type userService struct {
	userRepo   repository.UserRepository
	jwtUtil    *utils.JWTUtil
	limiter    LoginLimiter
	adminPhone string
	logger     *zap.Logger
}

// NewUserService creates a new UserService. limiter may be nil.
func NewUserService(userRepo repository.UserRepository, jwtUtil *utils.JWTUtil, limiter LoginLimiter, adminPhone string, logger *zap.Logger) UserService {
	if adminPhone != "" {
		adminPhone = rewards.NormalizePhone(adminPhone)
	}
	return &userService{
		userRepo:   userRepo,
		jwtUtil:    jwtUtil,
		limiter:    limiter,
		adminPhone: adminPhone,
		logger:     logger,
	}
}

// Register creates a new user account. A referral code owned by an existing
// user grants both sides the referral bonus; an unknown code is ignored.
func (s *userService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, string, error) {
	phone, err := rewards.ValidateRegistration(req.Username, req.PhoneNumber, req.Password)
	if err != nil {
		return nil, "", err
	}

	existing, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing == nil {
		existing, err = s.userRepo.FindByPhone(ctx, phone)
		if err != nil {
			return nil, "", fmt.Errorf("failed to check existing user: %w", err)
		}
	}
	if existing != nil {
		return nil, "", ErrUserAlreadyExists
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	code, err := s.newReferralCode(ctx)
	if err != nil {
		return nil, "", err
	}

	role := model.RoleUser
	if s.adminPhone != "" && phone == s.adminPhone {
		role = model.RoleAdmin
		s.logger.Info("registering initial admin", zap.String("phone", phone))
	}

	acc := &model.Account{
		User: model.User{
			ID:           rewards.NewUserID(),
			Username:     req.Username,
			PhoneNumber:  phone,
			ReferralCode: code,
			Role:         role,
			CreatedAt:    time.Now().UTC(),
		},
		PasswordHash: hashedPassword,
	}

	if req.ReferralCode != "" {
		referrer, err := s.userRepo.FindByReferralCode(ctx, req.ReferralCode)
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve referral code: %w", err)
		}
		if referrer != nil {
			acc.ReferredBy = &referrer.ID
			acc.Points = rewards.ReferralBonus
			acc.BonusBalance = rewards.ReferralBonus
		}
	}

	if err := s.userRepo.Create(ctx, acc, rewards.ReferralBonus); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, "", ErrUserAlreadyExists
		}
		return nil, "", fmt.Errorf("failed to create user in repository: %w", err)
	}
	metrics.Registrations.WithLabelValues(strconv.FormatBool(acc.ReferredBy != nil)).Inc()
	s.logger.Info("user registered",
		zap.String("user_id", acc.ID),
		zap.String("username", acc.Username),
		zap.Bool("referred", acc.ReferredBy != nil),
	)

	user := acc.Public()
	token, err := s.jwtUtil.GenerateToken(user)
	if err != nil {
		s.logger.Error("user created, but failed to generate token", zap.String("user_id", user.ID), zap.Error(err))
		return user, "", fmt.Errorf("user created, but failed to generate token: %w", err)
	}
	return user, token, nil
}

func (s *userService) newReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code := rewards.GenerateReferralCode()
		owner, err := s.userRepo.FindByReferralCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check referral code: %w", err)
		}
		if owner == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free referral code after %d attempts", referralCodeAttempts)
}

// Login authenticates a user, stamps lastLogin and returns a JWT token.
// Unknown usernames and wrong passwords are told apart.
func (s *userService) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, username)
		if err != nil {
			s.logger.Warn("login limiter unavailable", zap.Error(err))
		} else if !ok {
			metrics.Logins.WithLabelValues(metrics.OutcomeLimited).Inc()
			wait, err := s.limiter.RetryAfter(ctx, username)
			if err != nil {
				s.logger.Warn("login limiter ttl unavailable", zap.Error(err))
			}
			return nil, "", &RateLimitError{RetryAfter: wait}
		}
	}

	acc, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("error finding user by username: %w", err)
	}
	if acc == nil {
		metrics.Logins.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, "", ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(password, acc.PasswordHash) {
		metrics.Logins.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, "", ErrInvalidPassword
	}

	now := time.Now().UTC()
	if err := s.userRepo.TouchLastLogin(ctx, acc.ID, now); err != nil {
		return nil, "", err
	}
	acc.LastLogin = &now

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, username); err != nil {
			s.logger.Warn("failed to reset login limiter", zap.Error(err))
		}
	}
	metrics.Logins.WithLabelValues(metrics.OutcomeSuccess).Inc()

	token, err := s.jwtUtil.GenerateToken(&acc.User)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return acc.Public(), token, nil
}

func (s *userService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *userService) Profile(ctx context.Context, userID string) (*model.User, error) {
	acc, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if acc == nil {
		return nil, ErrUserNotFound
	}
	return acc.Public(), nil
}

// UpdatePoints overwrites the balance; callers compute the new value.
func (s *userService) UpdatePoints(ctx context.Context, userID string, points int64) (int64, error) {
	acc, err := s.mutate(ctx, userID, repository.Change{Kind: model.LedgerKindAdjustment}, func(a *model.Account) error {
		a.Points = points
		return nil
	})
	if err != nil {
		return 0, err
	}
	return acc.Points, nil
}

func (s *userService) ReferralStats(ctx context.Context, userID string) (*model.ReferralStats, error) {
	acc, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if acc == nil {
		return nil, ErrUserNotFound
	}
	n, err := s.userRepo.CountReferrals(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.ReferralStats{
		TotalReferrals: n,
		TotalEarnings:  int64(n) * rewards.ReferralBonus,
		BonusBalance:   acc.BonusBalance,
	}, nil
}

func (s *userService) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) error {
	acc, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		return fmt.Errorf("error finding user by username: %w", err)
	}
	if acc == nil {
		return ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(req.CurrentPassword, acc.PasswordHash) {
		return ErrInvalidPassword
	}
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, acc.ID, hash); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	s.logger.Info("password reset", zap.String("user_id", acc.ID))
	return nil
}

// Activate moves the account to ACTIVE and clears a pending request.
func (s *userService) Activate(ctx context.Context, userID string) (*model.User, error) {
	acc, err := s.mutate(ctx, userID, repository.Change{}, func(a *model.Account) error {
		a.IsActivated = true
		a.PendingActivation = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account activated", zap.String("user_id", userID))
	return acc.Public(), nil
}

func (s *userService) mutate(ctx context.Context, userID string, c repository.Change, fn repository.MutateFunc) (*model.Account, error) {
	acc, entry, err := s.userRepo.Mutate(ctx, userID, c, fn)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if entry != nil {
		metrics.PointUpdates.WithLabelValues(entry.Kind).Inc()
	}
	return acc, nil
}
