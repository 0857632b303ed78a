// Package apiconnect wires the onTime services to Connect handlers and clients.
package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/ontime/billsplit/pkg/api"
)

const (
	// ExpenseServiceName is the fully-qualified name of the ExpenseService service.
	ExpenseServiceName = "ontime.v1.ExpenseService"
	// AuthServiceName is the fully-qualified name of the AuthService service.
	AuthServiceName = "ontime.v1.AuthService"
)

// Procedure names, usable in interceptors and routing.
const (
	ExpenseServicePreviewSplitProcedure         = "/ontime.v1.ExpenseService/PreviewSplit"
	ExpenseServiceCreateExpenseProcedure        = "/ontime.v1.ExpenseService/CreateExpense"
	ExpenseServicePrepareCreateExpenseProcedure = "/ontime.v1.ExpenseService/PrepareCreateExpense"
	ExpenseServicePrepareSettleExpenseProcedure = "/ontime.v1.ExpenseService/PrepareSettleExpense"
	ExpenseServiceSubmitTransactionProcedure    = "/ontime.v1.ExpenseService/SubmitTransaction"
	ExpenseServiceSettleExpenseProcedure        = "/ontime.v1.ExpenseService/SettleExpense"
	ExpenseServiceGetExpenseProcedure           = "/ontime.v1.ExpenseService/GetExpense"
	ExpenseServiceListExpensesProcedure         = "/ontime.v1.ExpenseService/ListExpenses"
	ExpenseServiceGetBalancesProcedure          = "/ontime.v1.ExpenseService/GetBalances"
	ExpenseServiceGetProfileProcedure           = "/ontime.v1.ExpenseService/GetProfile"
	ExpenseServiceListPaymentsProcedure         = "/ontime.v1.ExpenseService/ListPayments"

	AuthServiceChallengeProcedure = "/ontime.v1.AuthService/Challenge"
	AuthServiceVerifyProcedure    = "/ontime.v1.AuthService/Verify"
)

// ExpenseServiceHandler is implemented by the server side of ExpenseService.
type ExpenseServiceHandler interface {
	PreviewSplit(context.Context, *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error)
	CreateExpense(context.Context, *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error)
	PrepareCreateExpense(context.Context, *connect.Request[api.PrepareCreateExpenseRequest]) (*connect.Response[api.PrepareCreateExpenseResponse], error)
	PrepareSettleExpense(context.Context, *connect.Request[api.PrepareSettleExpenseRequest]) (*connect.Response[api.PrepareSettleExpenseResponse], error)
	SubmitTransaction(context.Context, *connect.Request[api.SubmitTransactionRequest]) (*connect.Response[api.SubmitTransactionResponse], error)
	SettleExpense(context.Context, *connect.Request[api.SettleExpenseRequest]) (*connect.Response[api.SettleExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error)
	GetBalances(context.Context, *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error)
	GetProfile(context.Context, *connect.Request[api.GetProfileRequest]) (*connect.Response[api.GetProfileResponse], error)
	ListPayments(context.Context, *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withJSON(opts)
	mux := http.NewServeMux()
	mux.Handle(ExpenseServicePreviewSplitProcedure, connect.NewUnaryHandler(ExpenseServicePreviewSplitProcedure, svc.PreviewSplit, opts...))
	mux.Handle(ExpenseServiceCreateExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceCreateExpenseProcedure, svc.CreateExpense, opts...))
	mux.Handle(ExpenseServicePrepareCreateExpenseProcedure, connect.NewUnaryHandler(ExpenseServicePrepareCreateExpenseProcedure, svc.PrepareCreateExpense, opts...))
	mux.Handle(ExpenseServicePrepareSettleExpenseProcedure, connect.NewUnaryHandler(ExpenseServicePrepareSettleExpenseProcedure, svc.PrepareSettleExpense, opts...))
	mux.Handle(ExpenseServiceSubmitTransactionProcedure, connect.NewUnaryHandler(ExpenseServiceSubmitTransactionProcedure, svc.SubmitTransaction, opts...))
	mux.Handle(ExpenseServiceSettleExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceSettleExpenseProcedure, svc.SettleExpense, opts...))
	mux.Handle(ExpenseServiceGetExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceGetExpenseProcedure, svc.GetExpense, opts...))
	mux.Handle(ExpenseServiceListExpensesProcedure, connect.NewUnaryHandler(ExpenseServiceListExpensesProcedure, svc.ListExpenses, opts...))
	mux.Handle(ExpenseServiceGetBalancesProcedure, connect.NewUnaryHandler(ExpenseServiceGetBalancesProcedure, svc.GetBalances, opts...))
	mux.Handle(ExpenseServiceGetProfileProcedure, connect.NewUnaryHandler(ExpenseServiceGetProfileProcedure, svc.GetProfile, opts...))
	mux.Handle(ExpenseServiceListPaymentsProcedure, connect.NewUnaryHandler(ExpenseServiceListPaymentsProcedure, svc.ListPayments, opts...))
	return "/" + ExpenseServiceName + "/", mux
}

// ExpenseServiceClient is a client for ExpenseService.
type ExpenseServiceClient struct {
	previewSplit         *connect.Client[api.PreviewSplitRequest, api.PreviewSplitResponse]
	createExpense        *connect.Client[api.CreateExpenseRequest, api.CreateExpenseResponse]
	prepareCreateExpense *connect.Client[api.PrepareCreateExpenseRequest, api.PrepareCreateExpenseResponse]
	prepareSettleExpense *connect.Client[api.PrepareSettleExpenseRequest, api.PrepareSettleExpenseResponse]
	submitTransaction    *connect.Client[api.SubmitTransactionRequest, api.SubmitTransactionResponse]
	settleExpense        *connect.Client[api.SettleExpenseRequest, api.SettleExpenseResponse]
	getExpense           *connect.Client[api.GetExpenseRequest, api.GetExpenseResponse]
	listExpenses         *connect.Client[api.ListExpensesRequest, api.ListExpensesResponse]
	getBalances          *connect.Client[api.GetBalancesRequest, api.GetBalancesResponse]
	getProfile           *connect.Client[api.GetProfileRequest, api.GetProfileResponse]
	listPayments         *connect.Client[api.ListPaymentsRequest, api.ListPaymentsResponse]
}

// NewExpenseServiceClient constructs a client for ExpenseService at baseURL
// (for example, http://localhost:8080).
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = withJSONClient(opts)
	return &ExpenseServiceClient{
		previewSplit:         connect.NewClient[api.PreviewSplitRequest, api.PreviewSplitResponse](httpClient, baseURL+ExpenseServicePreviewSplitProcedure, opts...),
		createExpense:        connect.NewClient[api.CreateExpenseRequest, api.CreateExpenseResponse](httpClient, baseURL+ExpenseServiceCreateExpenseProcedure, opts...),
		prepareCreateExpense: connect.NewClient[api.PrepareCreateExpenseRequest, api.PrepareCreateExpenseResponse](httpClient, baseURL+ExpenseServicePrepareCreateExpenseProcedure, opts...),
		prepareSettleExpense: connect.NewClient[api.PrepareSettleExpenseRequest, api.PrepareSettleExpenseResponse](httpClient, baseURL+ExpenseServicePrepareSettleExpenseProcedure, opts...),
		submitTransaction:    connect.NewClient[api.SubmitTransactionRequest, api.SubmitTransactionResponse](httpClient, baseURL+ExpenseServiceSubmitTransactionProcedure, opts...),
		settleExpense:        connect.NewClient[api.SettleExpenseRequest, api.SettleExpenseResponse](httpClient, baseURL+ExpenseServiceSettleExpenseProcedure, opts...),
		getExpense:           connect.NewClient[api.GetExpenseRequest, api.GetExpenseResponse](httpClient, baseURL+ExpenseServiceGetExpenseProcedure, opts...),
		listExpenses:         connect.NewClient[api.ListExpensesRequest, api.ListExpensesResponse](httpClient, baseURL+ExpenseServiceListExpensesProcedure, opts...),
		getBalances:          connect.NewClient[api.GetBalancesRequest, api.GetBalancesResponse](httpClient, baseURL+ExpenseServiceGetBalancesProcedure, opts...),
		getProfile:           connect.NewClient[api.GetProfileRequest, api.GetProfileResponse](httpClient, baseURL+ExpenseServiceGetProfileProcedure, opts...),
		listPayments:         connect.NewClient[api.ListPaymentsRequest, api.ListPaymentsResponse](httpClient, baseURL+ExpenseServiceListPaymentsProcedure, opts...),
	}
}

func (c *ExpenseServiceClient) PreviewSplit(ctx context.Context, req *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error) {
	return c.previewSplit.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) PrepareCreateExpense(ctx context.Context, req *connect.Request[api.PrepareCreateExpenseRequest]) (*connect.Response[api.PrepareCreateExpenseResponse], error) {
	return c.prepareCreateExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) PrepareSettleExpense(ctx context.Context, req *connect.Request[api.PrepareSettleExpenseRequest]) (*connect.Response[api.PrepareSettleExpenseResponse], error) {
	return c.prepareSettleExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) SubmitTransaction(ctx context.Context, req *connect.Request[api.SubmitTransactionRequest]) (*connect.Response[api.SubmitTransactionResponse], error) {
	return c.submitTransaction.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) SettleExpense(ctx context.Context, req *connect.Request[api.SettleExpenseRequest]) (*connect.Response[api.SettleExpenseResponse], error) {
	return c.settleExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	return c.getBalances.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetProfile(ctx context.Context, req *connect.Request[api.GetProfileRequest]) (*connect.Response[api.GetProfileResponse], error) {
	return c.getProfile.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListPayments(ctx context.Context, req *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error) {
	return c.listPayments.CallUnary(ctx, req)
}

func withJSON(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
}

func withJSONClient(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
}
