package server

import (
	"FeeDistributor/internal/distribution"
	"FeeDistributor/internal/query"
	"context"

	"google.golang.org/grpc"
)

const serviceName = "feedistributor.v1.Distributor"

// Full method names, shared by the server and the HTTP gateway.
const (
	methodProcessPage     = "/" + serviceName + "/ProcessPage"
	methodGetProgress     = "/" + serviceName + "/GetProgress"
	methodRecordAccrual   = "/" + serviceName + "/RecordAccrual"
	methodListReceipts    = "/" + serviceName + "/ListDayReceipts"
	methodGetAccount      = "/" + serviceName + "/GetAccountTotals"
	methodListJournals    = "/" + serviceName + "/ListJournals"
	methodVerifyIntegrity = "/" + serviceName + "/VerifyIntegrity"
)

type GetProgressRequest struct {
	DayID int64 `json:"day_id"`
}

type RecordAccrualRequest struct {
	AccrualID  string `json:"accrual_id"`
	PositionID string `json:"position_id"`
	Amount     uint64 `json:"amount"`
	Timestamp  int64  `json:"ts"`
}

type RecordAccrualResponse struct {
	AccrualID string `json:"accrual_id"`
}

type ListReceiptsRequest struct {
	DayID         int64 `json:"day_id"`
	Limit         int   `json:"limit"`
	AfterSequence int64 `json:"after_sequence"`
}

type ListReceiptsResponse struct {
	Receipts []query.ReceiptEntry `json:"receipts"`
}

type GetAccountRequest struct {
	AccountPath string `json:"account_path"`
}

type ListJournalsRequest struct {
	AccountPath    string `json:"account_path"`
	Limit          int    `json:"limit"`
	BeforeSequence int64  `json:"before_sequence"`
}

type ListJournalsResponse struct {
	Journals []query.JournalHistoryEntry `json:"journals"`
}

type VerifyIntegrityRequest struct{}

// DistributorServer is the RPC surface of the distributor.
type DistributorServer interface {
	ProcessPage(context.Context, *distribution.PageRequest) (*distribution.PageReceipt, error)
	GetProgress(context.Context, *GetProgressRequest) (*distribution.DayProgress, error)
	RecordAccrual(context.Context, *RecordAccrualRequest) (*RecordAccrualResponse, error)
	ListDayReceipts(context.Context, *ListReceiptsRequest) (*ListReceiptsResponse, error)
	GetAccountTotals(context.Context, *GetAccountRequest) (*query.AccountTotalsResponse, error)
	ListJournals(context.Context, *ListJournalsRequest) (*ListJournalsResponse, error)
	VerifyIntegrity(context.Context, *VerifyIntegrityRequest) (*query.IntegrityReport, error)
}

// RegisterDistributorServer registers srv on s.
func RegisterDistributorServer(s grpc.ServiceRegistrar, srv DistributorServer) {
	s.RegisterService(&distributorServiceDesc, srv)
}

// unary builds a MethodDesc handler for one request type.
func unary[Req any, Resp any](
	fullMethod string,
	call func(DistributorServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DistributorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DistributorServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var distributorServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DistributorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessPage", Handler: unary(methodProcessPage, DistributorServer.ProcessPage)},
		{MethodName: "GetProgress", Handler: unary(methodGetProgress, DistributorServer.GetProgress)},
		{MethodName: "RecordAccrual", Handler: unary(methodRecordAccrual, DistributorServer.RecordAccrual)},
		{MethodName: "ListDayReceipts", Handler: unary(methodListReceipts, DistributorServer.ListDayReceipts)},
		{MethodName: "GetAccountTotals", Handler: unary(methodGetAccount, DistributorServer.GetAccountTotals)},
		{MethodName: "ListJournals", Handler: unary(methodListJournals, DistributorServer.ListJournals)},
		{MethodName: "VerifyIntegrity", Handler: unary(methodVerifyIntegrity, DistributorServer.VerifyIntegrity)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "feedistributor/v1/distributor.proto",
}
