package service

import (
	"context"
	"crypto/ecdsa"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ontime/billsplit/internal/auth"
	"github.com/ontime/billsplit/internal/ens"
	"github.com/ontime/billsplit/internal/storage/sqlite"
	"github.com/ontime/billsplit/pkg/api"
	"github.com/ontime/billsplit/pkg/api/apiconnect"
)

func setupAuthServer(t *testing.T, resolver *fakeResolver) (*apiconnect.AuthServiceClient, *sqlite.SQLiteStore, *auth.JWTManager, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-auth-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret-key-at-least-16", time.Hour)
	authenticator := auth.NewWalletAuthenticator(store, testChainID, 5*time.Minute)
	var r ens.Resolver
	if resolver != nil {
		r = resolver
	}
	svc := NewAuthService(authenticator, jwtManager, r, store, nil)

	path, handler := apiconnect.NewAuthServiceHandler(svc)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)

	client := apiconnect.NewAuthServiceClient(http.DefaultClient, server.URL)
	cleanup := func() {
		server.Close()
		store.Close()
		os.Remove(tmpFile.Name())
	}
	return client, store, jwtManager, cleanup
}

func personalSign(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestAuthService_SignIn(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	resolver := newFakeResolver()
	resolver.names[addr] = "alice.eth"
	resolver.avatars["alice.eth"] = "ipfs://alice"

	client, store, jwtManager, cleanup := setupAuthServer(t, resolver)
	defer cleanup()
	ctx := context.Background()

	challenge, err := client.Challenge(ctx, connect.NewRequest(&api.ChallengeRequest{Address: addr.Hex()}))
	if err != nil {
		t.Fatalf("Challenge failed: %v", err)
	}
	if challenge.Msg.ExpiresAt <= time.Now().Unix() {
		t.Errorf("challenge already expired: %d", challenge.Msg.ExpiresAt)
	}

	msg := challenge.Msg.Message
	verify, err := client.Verify(ctx, connect.NewRequest(&api.VerifyRequest{
		Address:   addr.Hex(),
		Message:   msg,
		Signature: personalSign(t, key, msg),
	}))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	claims, err := jwtManager.Validate(verify.Msg.Token)
	if err != nil {
		t.Fatalf("token did not validate: %v", err)
	}
	if common.HexToAddress(claims.Address) != addr || claims.ENSName != "alice.eth" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if verify.Msg.Account.ENSName != "alice.eth" || verify.Msg.Account.Avatar != "ipfs://alice" {
		t.Errorf("unexpected account %+v", verify.Msg.Account)
	}

	account, err := store.GetAccount(ctx, addr.Hex())
	if err != nil || account == nil {
		t.Fatalf("GetAccount = %v, %v", account, err)
	}
	if account.ENSName != "alice.eth" {
		t.Errorf("stored ENSName = %q, want alice.eth", account.ENSName)
	}

	// The challenge is single use.
	_, err = client.Verify(ctx, connect.NewRequest(&api.VerifyRequest{
		Address:   addr.Hex(),
		Message:   msg,
		Signature: personalSign(t, key, msg),
	}))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestAuthService_Rejects(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	client, _, _, cleanup := setupAuthServer(t, nil)
	defer cleanup()
	ctx := context.Background()

	_, err = client.Challenge(ctx, connect.NewRequest(&api.ChallengeRequest{Address: "not-an-address"}))
	assertCode(t, err, connect.CodeInvalidArgument)

	challenge, err := client.Challenge(ctx, connect.NewRequest(&api.ChallengeRequest{Address: addr.Hex()}))
	if err != nil {
		t.Fatalf("Challenge failed: %v", err)
	}
	msg := challenge.Msg.Message

	tests := []struct {
		name string
		req  *api.VerifyRequest
		code connect.Code
	}{
		{
			name: "signed by another key",
			req:  &api.VerifyRequest{Address: addr.Hex(), Message: msg, Signature: personalSign(t, other, msg)},
			code: connect.CodeUnauthenticated,
		},
		{
			name: "garbage signature",
			req:  &api.VerifyRequest{Address: addr.Hex(), Message: msg, Signature: "0x1234"},
			code: connect.CodeUnauthenticated,
		},
		{
			name: "tampered message",
			req:  &api.VerifyRequest{Address: addr.Hex(), Message: msg + "\nextra", Signature: personalSign(t, key, msg)},
			code: connect.CodeUnauthenticated,
		},
		{
			name: "missing signature",
			req:  &api.VerifyRequest{Address: addr.Hex(), Message: msg},
			code: connect.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Verify(ctx, connect.NewRequest(tt.req))
			assertCode(t, err, tt.code)
		})
	}

	// A rejected attempt does not burn the nonce.
	verify, err := client.Verify(ctx, connect.NewRequest(&api.VerifyRequest{
		Address:   addr.Hex(),
		Message:   msg,
		Signature: personalSign(t, key, msg),
	}))
	if err != nil {
		t.Fatalf("Verify failed after rejected attempts: %v", err)
	}
	if verify.Msg.Account.ENSName != "" {
		t.Errorf("expected no ENS name without a resolver, got %q", verify.Msg.Account.ENSName)
	}
}
