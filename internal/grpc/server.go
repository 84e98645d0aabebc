package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"asynccalc/internal/auth"
	"asynccalc/internal/models"
	"asynccalc/internal/types"
)

const maxExpressionLength = 4096

// Service is the use-case API behind the RPC handlers.
type Service interface {
	List(ctx context.Context, filter models.CalculationFilter, page models.Pagination) ([]models.Calculation, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.Calculation, error)
	Create(ctx context.Context, expression string, user models.User) (models.Calculation, error)
	Cancel(ctx context.Context, id uuid.UUID, requestedBy models.User) (models.CalculationStatusUpdate, error)
}

// CalculatorServer implements calc.v1.Calculations on top of Service.
type CalculatorServer struct {
	svc Service
}

func NewCalculatorServer(svc Service) *CalculatorServer {
	return &CalculatorServer{svc: svc}
}

func (s *CalculatorServer) Create(ctx context.Context, req *types.CalculateRequest) (*types.Calculation, error) {
	user, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Expression) == "" {
		return nil, status.Error(codes.InvalidArgument, "expression is required")
	}
	if len(req.Expression) > maxExpressionLength {
		return nil, status.Errorf(codes.InvalidArgument, "expression is longer than %d bytes", maxExpressionLength)
	}

	calc, err := s.svc.Create(ctx, req.Expression, user)
	if err != nil {
		return nil, toStatus(err)
	}
	out := types.FromCalculation(calc)
	return &out, nil
}

func (s *CalculatorServer) Get(ctx context.Context, req *types.GetRequest) (*types.Calculation, error) {
	user, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid calculation id")
	}

	calc, err := s.svc.GetByID(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	if calc.CreatedBy.ID != user.ID {
		return nil, status.Errorf(codes.NotFound, "calculation %s not found", id)
	}
	out := types.FromCalculation(calc)
	return &out, nil
}

func (s *CalculatorServer) List(ctx context.Context, req *types.ListRequest) (*types.CalculationList, error) {
	user, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := models.ParseStatuses(req.Statuses)
	if err != nil {
		return nil, toStatus(err)
	}
	page, err := models.ClientPage(req.Limit, req.Offset)
	if err != nil {
		return nil, toStatus(err)
	}

	calcs, err := s.svc.List(ctx, models.CalculationFilter{CreatedBy: &user.ID, Statuses: statuses}, page)
	if err != nil {
		return nil, toStatus(err)
	}
	return &types.CalculationList{
		Calculations: types.FromCalculations(calcs),
		Limit:        page.Limit,
		Offset:       page.Offset,
	}, nil
}

func (s *CalculatorServer) Cancel(ctx context.Context, req *types.CancelRequest) (*types.CalculationStatus, error) {
	user, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid calculation id")
	}

	update, err := s.svc.Cancel(ctx, id, user)
	if err != nil {
		return nil, toStatus(err)
	}
	out := types.FromStatusUpdate(update)
	return &out, nil
}

func callerFrom(ctx context.Context) (models.User, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return models.User{}, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return user, nil
}

// toStatus maps a service error to a gRPC status.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		code = codes.InvalidArgument
	case errors.Is(err, models.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrInvalidTransition):
		code = codes.FailedPrecondition
	case errors.Is(err, models.ErrTooManyPending):
		code = codes.ResourceExhausted
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

// AuthInterceptor resolves the caller from the "authorization" metadata entry.
func AuthInterceptor(tokens *auth.Tokens) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		var header string
		if values := md.Get("authorization"); len(values) > 0 {
			header = values[0]
		}
		user, err := tokens.Authenticate(header)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(auth.WithUser(ctx, user), req)
	}
}

// LoggingInterceptor logs every call, and the underlying error of internal failures.
func LoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	log := logger.With().Str("component", "grpc").Logger()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		event := log.Info()
		if code == codes.Internal || code == codes.Unknown {
			event = log.Error().Err(err)
		}
		event.
			Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("elapsed", time.Since(start)).
			Msg("call handled")
		return resp, err
	}
}

// NewServer creates a gRPC server exposing calc.v1.Calculations.
func NewServer(svc Service, tokens *auth.Tokens, logger zerolog.Logger) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(16 * 1024 * 1024),
		grpc.MaxSendMsgSize(16 * 1024 * 1024),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     time.Minute,
			MaxConnectionAge:      5 * time.Minute,
			MaxConnectionAgeGrace: 20 * time.Second,
			Time:                  20 * time.Second,
			Timeout:               10 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(LoggingInterceptor(logger), AuthInterceptor(tokens)),
	}

	s := grpc.NewServer(opts...)
	RegisterCalculationsServer(s, NewCalculatorServer(svc))
	return s
}
