package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/ontime/billsplit/pkg/api"
)

// AuthServiceHandler is implemented by the server side of AuthService.
type AuthServiceHandler interface {
	Challenge(context.Context, *connect.Request[api.ChallengeRequest]) (*connect.Response[api.ChallengeResponse], error)
	Verify(context.Context, *connect.Request[api.VerifyRequest]) (*connect.Response[api.VerifyResponse], error)
}

// NewAuthServiceHandler builds an HTTP handler from the service implementation.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withJSON(opts)
	mux := http.NewServeMux()
	mux.Handle(AuthServiceChallengeProcedure, connect.NewUnaryHandler(AuthServiceChallengeProcedure, svc.Challenge, opts...))
	mux.Handle(AuthServiceVerifyProcedure, connect.NewUnaryHandler(AuthServiceVerifyProcedure, svc.Verify, opts...))
	return "/" + AuthServiceName + "/", mux
}

// AuthServiceClient is a client for AuthService.
type AuthServiceClient struct {
	challenge *connect.Client[api.ChallengeRequest, api.ChallengeResponse]
	verify    *connect.Client[api.VerifyRequest, api.VerifyResponse]
}

// NewAuthServiceClient constructs a client for AuthService at baseURL.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = withJSONClient(opts)
	return &AuthServiceClient{
		challenge: connect.NewClient[api.ChallengeRequest, api.ChallengeResponse](httpClient, baseURL+AuthServiceChallengeProcedure, opts...),
		verify:    connect.NewClient[api.VerifyRequest, api.VerifyResponse](httpClient, baseURL+AuthServiceVerifyProcedure, opts...),
	}
}

func (c *AuthServiceClient) Challenge(ctx context.Context, req *connect.Request[api.ChallengeRequest]) (*connect.Response[api.ChallengeResponse], error) {
	return c.challenge.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Verify(ctx context.Context, req *connect.Request[api.VerifyRequest]) (*connect.Response[api.VerifyResponse], error) {
	return c.verify.CallUnary(ctx, req)
}
