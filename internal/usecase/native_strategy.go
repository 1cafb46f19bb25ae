package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/repository"
)

// NativeCredentials is the payload of the username/password strategy.
type NativeCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type dummyHasher interface {
	DummyHash() string
}

// NativeStrategy authenticates a username and password against the stored native credential.
type NativeStrategy struct {
	users     port.UserRepository
	cipher    port.PasswordCipher
	filter    port.IdentityFilter
	dummyHash string
}

// NewNativeStrategy constructs the native strategy. filter scopes identity lookups, the shop
// surface requires an approved customer profile while the admin surface does not.
func NewNativeStrategy(users port.UserRepository, cipher port.PasswordCipher, filter port.IdentityFilter) (*NativeStrategy, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository not configured")
	}
	if cipher == nil {
		return nil, fmt.Errorf("password cipher not configured")
	}

	dummy := ""
	if d, ok := cipher.(dummyHasher); ok {
		dummy = d.DummyHash()
	}
	if dummy == "" {
		hash, err := cipher.Hash(uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("derive dummy hash: %w", err)
		}
		dummy = hash
	}

	return &NativeStrategy{
		users:     users,
		cipher:    cipher,
		filter:    filter,
		dummyHash: dummy,
	}, nil
}

// Name returns the stable strategy name.
func (s *NativeStrategy) Name() string {
	return domain.NativeStrategyName
}

// Authenticate decodes the credentials and verifies them. Unknown, unapproved and soft-deleted
// identities still pay for a full hash comparison so they cannot be told apart from a wrong password.
func (s *NativeStrategy) Authenticate(ctx context.Context, _ domain.RequestContext, data json.RawMessage) (StrategyResult, error) {
	var creds NativeCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return StrategyResult{}, fmt.Errorf("%w: %v", ErrInvalidAuthenticationInput, err)
	}

	user, err := s.lookupIdentity(ctx, creds.Username)
	if err != nil {
		return StrategyResult{}, err
	}

	hash := s.dummyHash
	known := false
	if user != nil {
		method, err := s.users.GetNativeAuthenticationMethod(ctx, user.ID)
		switch {
		case err == nil && method.PasswordHash != "":
			hash = method.PasswordHash
			known = true
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return StrategyResult{}, fmt.Errorf("load native authentication method: %w", err)
		}
	}

	if !s.cipher.Check(creds.Password, hash) || !known {
		return StrategyResult{}, nil
	}

	return StrategyResult{User: user}, nil
}

func (s *NativeStrategy) lookupIdentity(ctx context.Context, identifier string) (*domain.User, error) {
	if identifier == "" {
		return nil, nil
	}

	user, err := s.users.FindActiveByIdentifier(ctx, identifier, s.filter)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	return user, nil
}

// attemptedIdentifier extracts the username of a native payload for auditing. The password is never read.
func attemptedIdentifier(data json.RawMessage) *string {
	var payload struct {
		Username *string `json:"username"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil
	}
	return payload.Username
}

var _ AuthenticationStrategy = (*NativeStrategy)(nil)
