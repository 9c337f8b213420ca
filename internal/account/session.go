package account

import (
	"context"
	"errors"
	"fmt"

	"patapesa/internal/model"
	"patapesa/internal/rewards"
	"patapesa/internal/store"
	"patapesa/internal/utils"

	"go.uber.org/zap"
)

// Register creates a user, remotely when the mirror answers, and makes it the
// current session.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	phone, err := rewards.ValidateRegistration(req.Username, req.PhoneNumber, req.Password)
	if err != nil {
		return nil, err
	}
	req.PhoneNumber = phone

	if s.mirror != nil {
		user, err := s.mirror.Register(ctx, req)
		if err == nil {
			s.logger.Info("registered on mirror", zap.String("user_id", user.ID), zap.String("username", user.Username))
			s.mu.Lock()
			defer s.mu.Unlock()
			adopted, err := s.adoptRemote(ctx, user, req.Password)
			if err != nil {
				return nil, err
			}
			if err := s.setSession(ctx, adopted); err != nil {
				return nil, err
			}
			return adopted, nil
		}
		if !s.shouldFallback(err) {
			return nil, translateRemote(err)
		}
		s.logger.Warn("mirror registration failed, using local storage", zap.Error(err))
	}

	return s.registerLocal(ctx, req)
}

func (s *Service) registerLocal(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	hash, err := utils.HashPasswordCost(req.Password, s.hashCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var created, referrer model.User
	referred := false
	err = s.updateUsers(ctx, func(users userSet) error {
		for _, a := range users {
			if a.Username == req.Username || a.PhoneNumber == req.PhoneNumber {
				return ErrDuplicateAccount
			}
		}

		acc := &model.Account{
			User: model.User{
				ID:           rewards.NewUserID(),
				Username:     req.Username,
				PhoneNumber:  req.PhoneNumber,
				ReferralCode: uniqueReferralCode(users),
				Role:         model.RoleUser,
				CreatedAt:    now,
			},
			PasswordHash: hash,
		}
		if req.ReferralCode != "" {
			if ref := findByReferralCode(users, req.ReferralCode); ref != nil {
				ref.BonusBalance += rewards.ReferralBonus
				refID := ref.ID
				acc.ReferredBy = &refID
				acc.Points = rewards.ReferralBonus
				acc.BonusBalance = rewards.ReferralBonus
				referrer = ref.User
				referred = true
			}
		}
		users[acc.ID] = acc
		created = acc.User
		return nil
	})
	if err != nil {
		return nil, err
	}

	if referred {
		s.appendLedger(ctx,
			model.LedgerEntry{UserID: created.ID, Kind: model.LedgerKindReferralBonus, Delta: rewards.ReferralBonus,
				BonusDelta: rewards.ReferralBonus, BalanceAfter: created.Points, Reference: &referrer.ID},
			model.LedgerEntry{UserID: referrer.ID, Kind: model.LedgerKindReferralBonus,
				BonusDelta: rewards.ReferralBonus, BalanceAfter: referrer.Points, Reference: &created.ID},
		)
	}

	if err := s.setSession(ctx, &created); err != nil {
		return nil, err
	}
	s.logger.Info("registered locally", zap.String("user_id", created.ID), zap.Bool("referred", referred))
	return &created, nil
}

// Login authenticates remote-first and falls back to the local user set
// according to the fallback policy. rememberMe saves or clears the
// credential pair.
func (s *Service) Login(ctx context.Context, username, password string, rememberMe bool) (*model.User, error) {
	if s.mirror != nil {
		user, err := s.mirror.Login(ctx, username, password)
		if err == nil {
			s.mu.Lock()
			defer s.mu.Unlock()
			adopted, err := s.adoptRemote(ctx, user, password)
			if err != nil {
				return nil, err
			}
			return s.establish(ctx, adopted, username, password, rememberMe)
		}
		if !s.shouldFallback(err) {
			return nil, translateRemote(err)
		}
		s.logger.Warn("mirror login failed, using local storage", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	acc := findByUsername(users, username)
	if acc == nil {
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(password, acc.PasswordHash) {
		return nil, ErrInvalidPassword
	}
	return s.establish(ctx, acc.Public(), username, password, rememberMe)
}

func (s *Service) establish(ctx context.Context, user *model.User, username, password string, rememberMe bool) (*model.User, error) {
	if err := s.setSession(ctx, user); err != nil {
		return nil, err
	}
	creds := model.SavedCredentials{Username: username, Password: password}
	if err := s.creds.Save(ctx, creds, rememberMe); err != nil {
		// the login itself succeeded
		s.logger.Error("failed to save credentials", zap.Error(err))
	}
	return user, nil
}

// Logout ends the session. Saved credentials survive unless clearSaved is set.
func (s *Service) Logout(ctx context.Context, clearSaved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, store.KeyCurrentUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if clearSaved {
		return s.creds.Clear(ctx)
	}
	return nil
}

// CurrentSession returns the authenticated user of this device.
func (s *Service) CurrentSession(ctx context.Context) (*model.Session, error) {
	sess, err := store.GetJSON[model.Session](ctx, s.kv, store.KeyCurrentUser)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ResetPassword replaces the password after checking the current one.
func (s *Service) ResetPassword(ctx context.Context, username, currentPassword, newPassword string) error {
	if newPassword == "" {
		return &rewards.ValidationError{Field: "newPassword", Message: "password is required"}
	}
	hash, err := utils.HashPasswordCost(newPassword, s.hashCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateUsers(ctx, func(users userSet) error {
		acc := findByUsername(users, username)
		if acc == nil {
			return ErrInvalidCredentials
		}
		if !utils.CheckPasswordHash(currentPassword, acc.PasswordHash) {
			return ErrInvalidPassword
		}
		acc.PasswordHash = hash
		return nil
	})
}

// setSession replaces the session record. Caller holds s.mu.
func (s *Service) setSession(ctx context.Context, user *model.User) error {
	sess := model.Session{User: *user, StartedAt: s.now()}
	if err := store.SetJSON(ctx, s.kv, store.KeyCurrentUser, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// syncSession copies user into the session when it is the active user.
// Caller holds s.mu.
func (s *Service) syncSession(ctx context.Context, user *model.User) error {
	sess, err := store.GetJSON[model.Session](ctx, s.kv, store.KeyCurrentUser)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sess.ID != user.ID {
		return nil
	}
	sess.User = *user
	return store.SetJSON(ctx, s.kv, store.KeyCurrentUser, sess)
}

// adoptRemote copies a mirror user into the local set so the device can log
// in offline later, and returns the merged record. Caller holds s.mu.
func (s *Service) adoptRemote(ctx context.Context, user *model.User, password string) (*model.User, error) {
	var merged model.User
	err := s.updateUsers(ctx, func(users userSet) error {
		if other := findByUsername(users, user.Username); other != nil && other.ID != user.ID {
			return fmt.Errorf("%w: username %q belongs to local user %s", ErrAccountConflict, user.Username, other.ID)
		}
		acc, ok := users[user.ID]
		if !ok {
			acc = &model.Account{}
			users[user.ID] = acc
		}
		acc.User = mergeRemote(acc.User, *user)
		if !utils.CheckPasswordHash(password, acc.PasswordHash) || utils.NeedsRehash(acc.PasswordHash, s.hashCost) {
			hash, err := utils.HashPasswordCost(password, s.hashCost)
			if err != nil {
				return err
			}
			acc.PasswordHash = hash
		}
		merged = acc.User
		return nil
	})
	if err != nil {
		s.logger.Warn("mirror user not copied locally", zap.String("user_id", user.ID), zap.Error(err))
		return nil, err
	}
	return &merged, nil
}

// mergeRemote lays the mirror's copy over the local one. The mirror's fields
// win except the one-way flags: a used free spin and ACTIVE are never undone
// by a stale remote copy.
func mergeRemote(local, server model.User) model.User {
	merged := server
	merged.HasUsedFreeSpin = local.HasUsedFreeSpin || server.HasUsedFreeSpin
	merged.IsActivated = local.IsActivated || server.IsActivated
	merged.PendingActivation = !merged.IsActivated && (local.PendingActivation || server.PendingActivation)
	return merged
}
