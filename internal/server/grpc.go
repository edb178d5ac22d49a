package server

import (
	"FeeDistributor/internal/distribution"
	"FeeDistributor/internal/ingestion"
	"FeeDistributor/internal/observability"
	"FeeDistributor/internal/query"
	"FeeDistributor/internal/storage"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Queries is the read side served over RPC. It is nil when the distributor
// runs on in-memory stores.
type Queries interface {
	ListDayReceipts(ctx context.Context, dayID int64, limit int, afterSequence int64) ([]query.ReceiptEntry, error)
	GetAccountTotals(ctx context.Context, accountPath string) (*query.AccountTotalsResponse, error)
	GetJournalHistory(ctx context.Context, accountPath string, limit int, beforeSequence *int64) ([]query.JournalHistoryEntry, error)
	VerifyIntegrity(ctx context.Context) (*query.IntegrityReport, error)
}

// GRPCServer wraps the gRPC server and its HTTP gateway.
type GRPCServer struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	healthServer  *health.Server
	grpcAddr      string
	httpAddr      string
	healthChecker *observability.HealthChecker
	log           zerolog.Logger
}

// ServerDeps holds the services behind the RPC surface.
type ServerDeps struct {
	Engine        *distribution.Engine
	Ingest        *ingestion.GRPCIngestService
	Queries       Queries
	HealthChecker *observability.HealthChecker
	Logger        zerolog.Logger
}

func NewGRPCServer(grpcAddr, httpAddr string, deps *ServerDeps) *GRPCServer {
	grpcServer := grpc.NewServer()

	RegisterDistributorServer(grpcServer, &distributorImpl{
		engine:  deps.Engine,
		ingest:  deps.Ingest,
		queries: deps.Queries,
	})

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)

	if deps.HealthChecker != nil {
		deps.HealthChecker.OnChange(func(ready bool) {
			st := healthpb.HealthCheckResponse_NOT_SERVING
			if ready {
				st = healthpb.HealthCheckResponse_SERVING
			}
			healthServer.SetServingStatus("", st)
			healthServer.SetServingStatus(serviceName, st)
		})
	}

	reflection.Register(grpcServer)

	return &GRPCServer{
		grpcServer:    grpcServer,
		healthServer:  healthServer,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		healthChecker: deps.HealthChecker,
		log:           deps.Logger,
	}
}

// StartGRPC serves until ctx is cancelled.
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("gRPC server shutting down")
		s.healthServer.Shutdown()
		s.grpcServer.GracefulStop()
	}()

	s.log.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// ============================================================================
// Distributor implementation
// ============================================================================

type distributorImpl struct {
	engine  *distribution.Engine
	ingest  *ingestion.GRPCIngestService
	queries Queries
}

func (s *distributorImpl) ProcessPage(ctx context.Context, req *distribution.PageRequest) (*distribution.PageReceipt, error) {
	receipt, err := s.engine.ProcessPage(ctx, *req)
	if err != nil {
		return nil, statusFromError(err)
	}
	return receipt, nil
}

func (s *distributorImpl) GetProgress(ctx context.Context, req *GetProgressRequest) (*distribution.DayProgress, error) {
	p, err := s.engine.Progress(ctx, req.DayID)
	if err != nil {
		return nil, statusFromError(err)
	}
	return p, nil
}

func (s *distributorImpl) RecordAccrual(ctx context.Context, req *RecordAccrualRequest) (*RecordAccrualResponse, error) {
	if req.PositionID == "" {
		return nil, status.Error(codes.InvalidArgument, "position_id is required")
	}

	id, err := s.ingest.InjectAccrual(ctx, req.AccrualID, req.PositionID, req.Amount, req.Timestamp)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "record accrual: %v", err)
	}
	return &RecordAccrualResponse{AccrualID: id}, nil
}

func (s *distributorImpl) ListDayReceipts(ctx context.Context, req *ListReceiptsRequest) (*ListReceiptsResponse, error) {
	if s.queries == nil {
		return nil, errNoQueries
	}
	entries, err := s.queries.ListDayReceipts(ctx, req.DayID, req.Limit, req.AfterSequence)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &ListReceiptsResponse{Receipts: entries}, nil
}

func (s *distributorImpl) GetAccountTotals(ctx context.Context, req *GetAccountRequest) (*query.AccountTotalsResponse, error) {
	if s.queries == nil {
		return nil, errNoQueries
	}
	if req.AccountPath == "" {
		return nil, status.Error(codes.InvalidArgument, "account_path is required")
	}
	resp, err := s.queries.GetAccountTotals(ctx, req.AccountPath)
	if err != nil {
		return nil, statusFromError(err)
	}
	return resp, nil
}

func (s *distributorImpl) ListJournals(ctx context.Context, req *ListJournalsRequest) (*ListJournalsResponse, error) {
	if s.queries == nil {
		return nil, errNoQueries
	}
	if req.AccountPath == "" {
		return nil, status.Error(codes.InvalidArgument, "account_path is required")
	}

	var before *int64
	if req.BeforeSequence > 0 {
		before = &req.BeforeSequence
	}

	entries, err := s.queries.GetJournalHistory(ctx, req.AccountPath, req.Limit, before)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &ListJournalsResponse{Journals: entries}, nil
}

func (s *distributorImpl) VerifyIntegrity(ctx context.Context, _ *VerifyIntegrityRequest) (*query.IntegrityReport, error) {
	if s.queries == nil {
		return nil, errNoQueries
	}
	report, err := s.queries.VerifyIntegrity(ctx)
	if err != nil {
		return nil, statusFromError(err)
	}
	return report, nil
}

// ============================================================================
// Helpers
// ============================================================================

var errNoQueries = status.Error(codes.Unimplemented, "queries need the postgres store")

// statusFromError maps the error taxonomy onto gRPC codes.
func statusFromError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	var code codes.Code
	switch distribution.ErrorKind(err) {
	case "config":
		code = codes.InvalidArgument
	case "day_gate", "insufficient_revenue":
		code = codes.FailedPrecondition
	case "transfer", "upstream":
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
