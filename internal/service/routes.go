package service

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	// TripServiceName is the fully-qualified name of the trip service.
	TripServiceName = "tripsplit.v1.TripService"
	// AuthServiceName is the fully-qualified name of the auth service.
	AuthServiceName = "tripsplit.v1.AuthService"
)

// Procedure paths.
const (
	TripServiceCreateTripProcedure      = "/" + TripServiceName + "/CreateTrip"
	TripServiceListTripsProcedure       = "/" + TripServiceName + "/ListTrips"
	TripServiceAddTripmateProcedure     = "/" + TripServiceName + "/AddTripmate"
	TripServiceListTripmatesProcedure   = "/" + TripServiceName + "/ListTripmates"
	TripServiceAddExpenseProcedure      = "/" + TripServiceName + "/AddExpense"
	TripServiceDeleteExpenseProcedure   = "/" + TripServiceName + "/DeleteExpense"
	TripServiceListExpensesProcedure    = "/" + TripServiceName + "/ListExpenses"
	TripServiceGetDebtsProcedure        = "/" + TripServiceName + "/GetDebts"
	TripServiceSettleUpProcedure        = "/" + TripServiceName + "/SettleUp"
	TripServiceGetHistoryProcedure      = "/" + TripServiceName + "/GetHistory"
	TripServiceSetHomeCurrencyProcedure = "/" + TripServiceName + "/SetHomeCurrency"
	TripServiceCloseSessionProcedure    = "/" + TripServiceName + "/CloseSession"

	AuthServiceRegisterProcedure       = "/" + AuthServiceName + "/Register"
	AuthServiceLoginProcedure          = "/" + AuthServiceName + "/Login"
	AuthServiceGetCurrentUserProcedure = "/" + AuthServiceName + "/GetCurrentUser"
)

// TripServiceHandler is implemented by TripService.
type TripServiceHandler interface {
	CreateTrip(context.Context, *connect.Request[CreateTripRequest]) (*connect.Response[CreateTripResponse], error)
	ListTrips(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[ListTripsResponse], error)
	AddTripmate(context.Context, *connect.Request[AddTripmateRequest]) (*connect.Response[AddTripmateResponse], error)
	ListTripmates(context.Context, *connect.Request[ListTripmatesRequest]) (*connect.Response[ListTripmatesResponse], error)
	AddExpense(context.Context, *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[TripView], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	GetDebts(context.Context, *connect.Request[GetDebtsRequest]) (*connect.Response[TripView], error)
	SettleUp(context.Context, *connect.Request[SettleUpRequest]) (*connect.Response[SettleUpResponse], error)
	GetHistory(context.Context, *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error)
	SetHomeCurrency(context.Context, *connect.Request[SetHomeCurrencyRequest]) (*connect.Response[TripView], error)
	CloseSession(context.Context, *connect.Request[CloseSessionRequest]) (*connect.Response[emptypb.Empty], error)
}

// AuthServiceHandler is implemented by AuthService.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[AuthResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[AuthResponse], error)
	GetCurrentUser(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[GetCurrentUserResponse], error)
}

// NewTripServiceHandler builds an HTTP handler serving every trip procedure.
// It returns the path to mount the handler on.
func NewTripServiceHandler(svc TripServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	routes := map[string]http.Handler{
		TripServiceCreateTripProcedure:      connect.NewUnaryHandler(TripServiceCreateTripProcedure, svc.CreateTrip, opts...),
		TripServiceListTripsProcedure:       connect.NewUnaryHandler(TripServiceListTripsProcedure, svc.ListTrips, opts...),
		TripServiceAddTripmateProcedure:     connect.NewUnaryHandler(TripServiceAddTripmateProcedure, svc.AddTripmate, opts...),
		TripServiceListTripmatesProcedure:   connect.NewUnaryHandler(TripServiceListTripmatesProcedure, svc.ListTripmates, opts...),
		TripServiceAddExpenseProcedure:      connect.NewUnaryHandler(TripServiceAddExpenseProcedure, svc.AddExpense, opts...),
		TripServiceDeleteExpenseProcedure:   connect.NewUnaryHandler(TripServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...),
		TripServiceListExpensesProcedure:    connect.NewUnaryHandler(TripServiceListExpensesProcedure, svc.ListExpenses, opts...),
		TripServiceGetDebtsProcedure:        connect.NewUnaryHandler(TripServiceGetDebtsProcedure, svc.GetDebts, opts...),
		TripServiceSettleUpProcedure:        connect.NewUnaryHandler(TripServiceSettleUpProcedure, svc.SettleUp, opts...),
		TripServiceGetHistoryProcedure:      connect.NewUnaryHandler(TripServiceGetHistoryProcedure, svc.GetHistory, opts...),
		TripServiceSetHomeCurrencyProcedure: connect.NewUnaryHandler(TripServiceSetHomeCurrencyProcedure, svc.SetHomeCurrency, opts...),
		TripServiceCloseSessionProcedure:    connect.NewUnaryHandler(TripServiceCloseSessionProcedure, svc.CloseSession, opts...),
	}
	return "/" + TripServiceName + "/", dispatch(routes)
}

// NewAuthServiceHandler builds an HTTP handler serving every auth procedure.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	routes := map[string]http.Handler{
		AuthServiceRegisterProcedure:       connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...),
		AuthServiceLoginProcedure:          connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...),
		AuthServiceGetCurrentUserProcedure: connect.NewUnaryHandler(AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts...),
	}
	return "/" + AuthServiceName + "/", dispatch(routes)
}

func dispatch(routes map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// TripServiceClient calls the trip service over Connect with the JSON codec.
type TripServiceClient struct {
	createTrip      *connect.Client[CreateTripRequest, CreateTripResponse]
	listTrips       *connect.Client[emptypb.Empty, ListTripsResponse]
	addTripmate     *connect.Client[AddTripmateRequest, AddTripmateResponse]
	listTripmates   *connect.Client[ListTripmatesRequest, ListTripmatesResponse]
	addExpense      *connect.Client[AddExpenseRequest, AddExpenseResponse]
	deleteExpense   *connect.Client[DeleteExpenseRequest, TripView]
	listExpenses    *connect.Client[ListExpensesRequest, ListExpensesResponse]
	getDebts        *connect.Client[GetDebtsRequest, TripView]
	settleUp        *connect.Client[SettleUpRequest, SettleUpResponse]
	getHistory      *connect.Client[GetHistoryRequest, GetHistoryResponse]
	setHomeCurrency *connect.Client[SetHomeCurrencyRequest, TripView]
	closeSession    *connect.Client[CloseSessionRequest, emptypb.Empty]
}

// NewTripServiceClient creates a client for the service at baseURL.
func NewTripServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *TripServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &TripServiceClient{
		createTrip:      connect.NewClient[CreateTripRequest, CreateTripResponse](httpClient, baseURL+TripServiceCreateTripProcedure, opts...),
		listTrips:       connect.NewClient[emptypb.Empty, ListTripsResponse](httpClient, baseURL+TripServiceListTripsProcedure, opts...),
		addTripmate:     connect.NewClient[AddTripmateRequest, AddTripmateResponse](httpClient, baseURL+TripServiceAddTripmateProcedure, opts...),
		listTripmates:   connect.NewClient[ListTripmatesRequest, ListTripmatesResponse](httpClient, baseURL+TripServiceListTripmatesProcedure, opts...),
		addExpense:      connect.NewClient[AddExpenseRequest, AddExpenseResponse](httpClient, baseURL+TripServiceAddExpenseProcedure, opts...),
		deleteExpense:   connect.NewClient[DeleteExpenseRequest, TripView](httpClient, baseURL+TripServiceDeleteExpenseProcedure, opts...),
		listExpenses:    connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+TripServiceListExpensesProcedure, opts...),
		getDebts:        connect.NewClient[GetDebtsRequest, TripView](httpClient, baseURL+TripServiceGetDebtsProcedure, opts...),
		settleUp:        connect.NewClient[SettleUpRequest, SettleUpResponse](httpClient, baseURL+TripServiceSettleUpProcedure, opts...),
		getHistory:      connect.NewClient[GetHistoryRequest, GetHistoryResponse](httpClient, baseURL+TripServiceGetHistoryProcedure, opts...),
		setHomeCurrency: connect.NewClient[SetHomeCurrencyRequest, TripView](httpClient, baseURL+TripServiceSetHomeCurrencyProcedure, opts...),
		closeSession:    connect.NewClient[CloseSessionRequest, emptypb.Empty](httpClient, baseURL+TripServiceCloseSessionProcedure, opts...),
	}
}

func (c *TripServiceClient) CreateTrip(ctx context.Context, req *connect.Request[CreateTripRequest]) (*connect.Response[CreateTripResponse], error) {
	return c.createTrip.CallUnary(ctx, req)
}

func (c *TripServiceClient) ListTrips(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[ListTripsResponse], error) {
	return c.listTrips.CallUnary(ctx, req)
}

func (c *TripServiceClient) AddTripmate(ctx context.Context, req *connect.Request[AddTripmateRequest]) (*connect.Response[AddTripmateResponse], error) {
	return c.addTripmate.CallUnary(ctx, req)
}

func (c *TripServiceClient) ListTripmates(ctx context.Context, req *connect.Request[ListTripmatesRequest]) (*connect.Response[ListTripmatesResponse], error) {
	return c.listTripmates.CallUnary(ctx, req)
}

func (c *TripServiceClient) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *TripServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[TripView], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *TripServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *TripServiceClient) GetDebts(ctx context.Context, req *connect.Request[GetDebtsRequest]) (*connect.Response[TripView], error) {
	return c.getDebts.CallUnary(ctx, req)
}

func (c *TripServiceClient) SettleUp(ctx context.Context, req *connect.Request[SettleUpRequest]) (*connect.Response[SettleUpResponse], error) {
	return c.settleUp.CallUnary(ctx, req)
}

func (c *TripServiceClient) GetHistory(ctx context.Context, req *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error) {
	return c.getHistory.CallUnary(ctx, req)
}

func (c *TripServiceClient) SetHomeCurrency(ctx context.Context, req *connect.Request[SetHomeCurrencyRequest]) (*connect.Response[TripView], error) {
	return c.setHomeCurrency.CallUnary(ctx, req)
}

func (c *TripServiceClient) CloseSession(ctx context.Context, req *connect.Request[CloseSessionRequest]) (*connect.Response[emptypb.Empty], error) {
	return c.closeSession.CallUnary(ctx, req)
}

// AuthServiceClient calls the auth service over Connect with the JSON codec.
type AuthServiceClient struct {
	register       *connect.Client[RegisterRequest, AuthResponse]
	login          *connect.Client[LoginRequest, AuthResponse]
	getCurrentUser *connect.Client[emptypb.Empty, GetCurrentUserResponse]
}

// NewAuthServiceClient creates a client for the service at baseURL.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &AuthServiceClient{
		register:       connect.NewClient[RegisterRequest, AuthResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:          connect.NewClient[LoginRequest, AuthResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
		getCurrentUser: connect.NewClient[emptypb.Empty, GetCurrentUserResponse](httpClient, baseURL+AuthServiceGetCurrentUserProcedure, opts...),
	}
}

func (c *AuthServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[AuthResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[AuthResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *AuthServiceClient) GetCurrentUser(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}
