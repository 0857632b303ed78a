package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"

	"github.com/ontime/billsplit/internal/auth"
	"github.com/ontime/billsplit/internal/ens"
	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/pkg/api"
	"github.com/ontime/billsplit/pkg/api/apiconnect"
)

var _ apiconnect.AuthServiceHandler = (*AuthService)(nil)

// AccountWriter saves the refreshed ENS identity after sign-in.
type AccountWriter interface {
	UpsertAccount(ctx context.Context, account *models.Account) error
}

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	resolver      ens.Resolver
	accounts      AccountWriter
	validate      *validator.Validate
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service. resolver and accounts
// may be nil, in which case accounts keep whatever identity they had.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, resolver ens.Resolver, accounts AccountWriter, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		resolver:      resolver,
		accounts:      accounts,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger,
	}
}

// Challenge issues a message for the wallet to sign.
func (s *AuthService) Challenge(ctx context.Context, req *connect.Request[api.ChallengeRequest]) (*connect.Response[api.ChallengeResponse], error) {
	s.logger.Info("Challenge request", "address", req.Msg.Address)

	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidAddress)
	}

	message, expiresAt, err := s.authenticator.Challenge(ctx, req.Msg.Address)
	if err != nil {
		s.logger.Error("Challenge failed", "address", req.Msg.Address, "error", err)
		if errors.Is(err, auth.ErrInvalidAddress) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&api.ChallengeResponse{
		Message:   message,
		ExpiresAt: expiresAt.Unix(),
	}), nil
}

// Verify checks the signed challenge and returns a JWT for the wallet.
func (s *AuthService) Verify(ctx context.Context, req *connect.Request[api.VerifyRequest]) (*connect.Response[api.VerifyResponse], error) {
	s.logger.Info("Verify request", "address", req.Msg.Address)

	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	account, err := s.authenticator.Authenticate(ctx, req.Msg.Address, req.Msg.Message, req.Msg.Signature)
	if err != nil {
		s.logger.Warn("Verify failed", "address", req.Msg.Address, "error", err)
		switch {
		case errors.Is(err, auth.ErrInvalidAddress):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		case errors.Is(err, auth.ErrInvalidSignature), errors.Is(err, auth.ErrInvalidChallenge):
			return nil, connect.NewError(connect.CodeUnauthenticated, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.refreshIdentity(ctx, account)

	token, err := s.jwtManager.Generate(account)
	if err != nil {
		s.logger.Error("Failed to generate token", "address", account.Address, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Wallet signed in", "address", account.Address, "ens_name", account.ENSName)
	return connect.NewResponse(&api.VerifyResponse{
		Token:   token,
		Account: toAPIAccount(account),
	}), nil
}

// refreshIdentity looks up the account's ENS name and avatar and saves them.
// Lookup failures leave the cached identity untouched.
func (s *AuthService) refreshIdentity(ctx context.Context, account *models.Account) {
	if s.resolver == nil || !common.IsHexAddress(account.Address) {
		return
	}

	name, err := s.resolver.ResolveName(ctx, common.HexToAddress(account.Address))
	if err != nil {
		if !errors.Is(err, ens.ErrNotFound) {
			s.logger.Warn("ENS lookup failed", "address", account.Address, "error", err)
		}
		return
	}
	avatar, err := s.resolver.ResolveAvatar(ctx, name)
	if err != nil {
		avatar = ""
	}
	if name == account.ENSName && avatar == account.Avatar {
		return
	}

	account.ENSName = name
	account.Avatar = avatar
	if s.accounts == nil {
		return
	}
	if err := s.accounts.UpsertAccount(ctx, account); err != nil {
		s.logger.Warn("Failed to save ENS identity", "address", account.Address, "error", err)
	}
}
