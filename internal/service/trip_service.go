package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/tripsplit/internal/middleware"
	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/session"
	"github.com/mmynk/tripsplit/internal/settlement"
	"github.com/mmynk/tripsplit/internal/storage"
)

var (
	errNotTripmate   = errors.New("caller is not a tripmate of this trip")
	errPayerNotMate  = errors.New("payer is not a tripmate of this trip")
	errMissingTripID = errors.New("trip_id is required")
)

var _ TripServiceHandler = (*TripService)(nil)

// TripService implements the Connect TripService. Every RPC except CreateTrip
// and ListTrips requires the caller to be a tripmate of the trip.
type TripService struct {
	store           storage.Store
	sessions        *session.Registry
	settler         *settlement.Manager
	defaultCurrency string
	logger          *slog.Logger
}

// NewTripService creates a TripService. Trips created without a home currency
// get defaultCurrency.
func NewTripService(store storage.Store, sessions *session.Registry, settler *settlement.Manager, defaultCurrency string, logger *slog.Logger) *TripService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TripService{
		store:           store,
		sessions:        sessions,
		settler:         settler,
		defaultCurrency: models.NormalizeCurrency(defaultCurrency),
		logger:          logger,
	}
}

// CreateTrip creates a trip and adds the caller as its first tripmate.
func (s *TripService) CreateTrip(ctx context.Context, req *connect.Request[CreateTripRequest]) (*connect.Response[CreateTripResponse], error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}

	home := req.Msg.HomeCurrency
	if strings.TrimSpace(home) == "" {
		home = s.defaultCurrency
	}
	trip := &models.Trip{
		Name:         strings.TrimSpace(req.Msg.Name),
		HomeCurrency: models.NormalizeCurrency(home),
		CreatedBy:    caller.UserID,
	}
	if err := s.store.CreateTrip(ctx, trip); err != nil {
		s.logger.Error("CreateTrip failed", "error", err)
		return nil, toConnectError(err)
	}
	if err := s.store.AddTripmate(ctx, trip.ID, caller); err != nil {
		s.logger.Error("Failed to add trip creator", "trip_id", trip.ID, "error", err)
		return nil, toConnectError(err)
	}

	s.logger.Info("Trip created", "trip_id", trip.ID, "home_currency", trip.HomeCurrency, "created_by", caller.UserID)
	return connect.NewResponse(&CreateTripResponse{Trip: toTrip(trip)}), nil
}

// ListTrips returns the caller's trips, newest first.
func (s *TripService) ListTrips(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[ListTripsResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}

	trips, err := s.store.ListTripsForUser(ctx, userID)
	if err != nil {
		s.logger.Error("ListTrips failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]Trip, len(trips))
	for i, t := range trips {
		out[i] = toTrip(t)
	}
	return connect.NewResponse(&ListTripsResponse{Trips: out}), nil
}

// AddTripmate adds a registered user to the trip by email.
func (s *TripService) AddTripmate(ctx context.Context, req *connect.Request[AddTripmateRequest]) (*connect.Response[AddTripmateResponse], error) {
	trip, _, err := s.authorize(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	email := models.NormalizeEmail(req.Msg.Email)
	if email == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("email is required"))
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		s.logger.Warn("AddTripmate: user lookup failed", "trip_id", trip.ID, "email", email, "error", err)
		return nil, toConnectError(err)
	}

	mate := user.AsParticipant()
	if err := s.store.AddTripmate(ctx, trip.ID, mate); err != nil {
		s.logger.Error("AddTripmate failed", "trip_id", trip.ID, "error", err)
		return nil, toConnectError(err)
	}
	s.logger.Info("Tripmate added", "trip_id", trip.ID, "user_id", mate.UserID)

	// Everyone splits now include the new tripmate.
	s.refresh(ctx, trip)

	return connect.NewResponse(&AddTripmateResponse{Tripmate: toTripmate(mate)}), nil
}

// ListTripmates returns the trip's tripmates in join order.
func (s *TripService) ListTripmates(ctx context.Context, req *connect.Request[ListTripmatesRequest]) (*connect.Response[ListTripmatesResponse], error) {
	_, mates, err := s.authorize(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	out := make([]Tripmate, len(mates))
	for i, p := range mates {
		out[i] = toTripmate(p)
	}
	return connect.NewResponse(&ListTripmatesResponse{Tripmates: out}), nil
}

// AddExpense logs an expense and recalculates the trip's debts.
func (s *TripService) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	trip, mates, err := s.authorize(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}
	msg := req.Msg

	if msg.Amount <= 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("amount must be positive, got %v", msg.Amount))
	}
	method, err := models.ParseSplitMethod(msg.SplitMethod)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	payer := models.NormalizeEmail(msg.PaidBy)
	if payer == "" {
		payer = models.NormalizeEmail(middleware.GetEmail(ctx))
	}
	if !hasEmail(mates, payer) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errPayerNotMate)
	}

	currency := msg.Currency
	if strings.TrimSpace(currency) == "" {
		currency = trip.HomeCurrency
	}

	expense := &models.Expense{
		TripID:          trip.ID,
		Amount:          msg.Amount,
		Currency:        models.NormalizeCurrency(currency),
		PaidBy:          payer,
		SplitMethod:     method,
		Description:     strings.TrimSpace(msg.Description),
		Type:            msg.Type,
		ExpenseDate:     msg.ExpenseDate,
		ConsecutiveDays: msg.ConsecutiveDays,
	}
	if method == models.SplitIndividuals {
		expense.SplitWith = msg.SplitWith
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		s.logger.Error("AddExpense failed", "trip_id", trip.ID, "error", err)
		return nil, toConnectError(err)
	}
	s.logger.Info("Expense added",
		"trip_id", trip.ID,
		"expense_id", expense.ID,
		"amount", expense.Amount,
		"currency", expense.Currency,
		"split_method", expense.SplitMethod,
	)

	view := s.refresh(ctx, trip)
	return connect.NewResponse(&AddExpenseResponse{Expense: toExpense(expense), View: toTripView(view)}), nil
}

// DeleteExpense removes an expense and recalculates the trip's debts.
func (s *TripService) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[TripView], error) {
	trip, _, err := s.authorize(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteExpense(ctx, trip.ID, req.Msg.ExpenseID); err != nil {
		s.logger.Warn("DeleteExpense failed", "trip_id", trip.ID, "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}
	s.logger.Info("Expense deleted", "trip_id", trip.ID, "expense_id", req.Msg.ExpenseID)

	view := s.refresh(ctx, trip)
	return connect.NewResponse(ptr(toTripView(view))), nil
}

// ListExpenses returns the trip's expenses, oldest expense date first.
func (s *TripService) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	trip, _, err := s.authorize(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.store.ListExpenses(ctx, trip.ID)
	if err != nil {
		s.logger.Error("ListExpenses failed", "trip_id", trip.ID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]Expense, len(expenses))
	for i := range expenses {
		out[i] = toExpense(&expenses[i])
	}
	return connect.NewResponse(&ListExpensesResponse{Expenses: out}), nil
}

// GetDebts opens the trip's session, runs a pass and returns the live view.
func (s *TripService) GetDebts(ctx context.Context, req *connect.Request[GetDebtsRequest]) (*connect.Response[TripView], error) {
	trip, _, err := s.authorize(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	view := s.refresh(ctx, trip)
	if err := ctx.Err(); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(ptr(toTripView(view))), nil
}

// SettleUp settles every live debt of the trip.
func (s *TripService) SettleUp(ctx context.Context, req *connect.Request[SettleUpRequest]) (*connect.Response[SettleUpResponse], error) {
	trip, _, err := s.authorize(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	sess := s.sessions.Open(trip)
	if sess.View().Generation == 0 {
		// Nothing computed yet in this session.
		if _, err := sess.Recalculate(ctx); err != nil {
			s.logger.Error("SettleUp: recalculation failed", "trip_id", trip.ID, "error", err)
			return nil, toConnectError(err)
		}
	}

	settled, err := s.settler.SettleAll(ctx, sess, middleware.GetUserID(ctx))
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&SettleUpResponse{
		Settled: toSettledDebts(settled),
		View:    toTripView(sess.View()),
	}), nil
}

// GetHistory returns the trip's settled debts, most recent first.
func (s *TripService) GetHistory(ctx context.Context, req *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error) {
	trip, _, err := s.authorize(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.ListSettledDebts(ctx, trip.ID)
	if err != nil {
		s.logger.Error("GetHistory failed", "trip_id", trip.ID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetHistoryResponse{History: toSettledDebts(history)}), nil
}

// SetHomeCurrency changes the trip's reporting currency and recalculates.
func (s *TripService) SetHomeCurrency(ctx context.Context, req *connect.Request[SetHomeCurrencyRequest]) (*connect.Response[TripView], error) {
	trip, _, err := s.authorize(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}

	code := models.NormalizeCurrency(req.Msg.HomeCurrency)
	if code == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("home_currency is required"))
	}
	if err := s.store.UpdateHomeCurrency(ctx, trip.ID, code); err != nil {
		s.logger.Error("SetHomeCurrency failed", "trip_id", trip.ID, "error", err)
		return nil, toConnectError(err)
	}
	trip.HomeCurrency = code

	s.sessions.Open(trip).SetHomeCurrency(code)
	s.logger.Info("Home currency changed", "trip_id", trip.ID, "home_currency", code)

	view := s.refresh(ctx, trip)
	return connect.NewResponse(ptr(toTripView(view))), nil
}

// CloseSession discards the trip's live state. The next read starts fresh.
func (s *TripService) CloseSession(ctx context.Context, req *connect.Request[CloseSessionRequest]) (*connect.Response[emptypb.Empty], error) {
	trip, _, err := s.authorize(ctx, req.Msg.TripID)
	if err != nil {
		return nil, err
	}
	s.sessions.Close(trip.ID)
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// refresh runs a pass on the trip's session. A failed pass keeps the previous
// live state, which is returned either way.
func (s *TripService) refresh(ctx context.Context, trip *models.Trip) session.View {
	view, err := s.sessions.Open(trip).Recalculate(ctx)
	if err != nil {
		s.logger.Warn("Recalculation failed, serving previous state", "trip_id", trip.ID, "error", err)
	}
	return view
}

// caller returns the authenticated user as a participant.
func (s *TripService) caller(ctx context.Context) (models.Participant, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return models.Participant{}, connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Participant{UserID: userID, Email: models.NormalizeEmail(middleware.GetEmail(ctx))}, nil
		}
		return models.Participant{}, toConnectError(err)
	}
	return user.AsParticipant(), nil
}

// authorize loads the trip and its tripmates and checks the caller is one.
func (s *TripService) authorize(ctx context.Context, tripID string) (*models.Trip, []models.Participant, error) {
	if tripID == "" {
		return nil, nil, connect.NewError(connect.CodeInvalidArgument, errMissingTripID)
	}
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, nil, connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}

	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, nil, toConnectError(err)
	}
	mates, err := s.store.ListTripmates(ctx, tripID)
	if err != nil {
		return nil, nil, toConnectError(err)
	}
	for _, p := range mates {
		if p.UserID == userID {
			return trip, mates, nil
		}
	}
	return nil, nil, connect.NewError(connect.CodePermissionDenied, errNotTripmate)
}

func hasEmail(mates []models.Participant, email string) bool {
	for _, p := range mates {
		if models.NormalizeEmail(p.Email) == email {
			return true
		}
	}
	return false
}

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, settlement.ErrNothingToSettle):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func ptr[T any](v T) *T { return &v }
