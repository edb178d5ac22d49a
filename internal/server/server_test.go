package server

import (
	"FeeDistributor/internal/distribution"
	"FeeDistributor/internal/ingestion"
	"FeeDistributor/internal/ledger"
	"FeeDistributor/internal/observability"
	"FeeDistributor/internal/revenue"
	"FeeDistributor/internal/storage"
	"FeeDistributor/internal/storage/memory"
	"FeeDistributor/internal/testutil"
	"FeeDistributor/internal/vesting"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const (
	testWindow = int64(86_400)
	testDay    = int64(19_675)
)

type testEnv struct {
	http     *httptest.Server
	conn     *grpc.ClientConn
	health   *observability.HealthChecker
	treasury *ledger.Treasury
}

// newTestEnv serves a memory-backed distributor over bufconn and fronts it
// with the HTTP gateway.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(testDay*testWindow+3_600, 0))

	treasury, err := ledger.NewTreasury("srv", ledger.TreasuryDeps{Clock: clock, Logger: zerolog.Nop()})
	require.NoError(t, err)

	schedules := memory.NewScheduleStore()
	require.NoError(t, schedules.PutSchedule(ctx, vesting.Schedule{
		StreamID:   testutil.AccountID("stream:a"),
		Allocation: 1_000_000,
		StartTs:    clock.Now().Unix() + 10*testWindow,
		EndTs:      clock.Now().Unix() + 20*testWindow,
	}))

	pool := revenue.NewPool(memory.NewAccrualStore(), zerolog.Nop(), nil)
	engine, err := distribution.NewEngine(
		distribution.EngineConfig{
			WindowSeconds:   testWindow,
			TreasuryAccount: treasury.Account(),
			Recipient:       testutil.AccountID("creator"),
		},
		distribution.EngineDeps{
			Store:     memory.NewProgressStore(),
			Revenue:   revenue.NewFundedSource(pool, treasury),
			Vesting:   vesting.NewScheduleOracle(schedules),
			Transfers: treasury,
			Clock:     clock,
			Logger:    zerolog.Nop(),
		},
	)
	require.NoError(t, err)

	health := observability.NewHealthChecker()
	srv := NewGRPCServer("bufnet", "", &ServerDeps{
		Engine:        engine,
		Ingest:        ingestion.NewGRPCIngestService(pool, clock),
		HealthChecker: health,
		Logger:        zerolog.Nop(),
	})

	lis := bufconn.Listen(1 << 20)
	go srv.grpcServer.Serve(lis)
	t.Cleanup(srv.grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	mux, err := NewGatewayMux(conn)
	require.NoError(t, err)
	hs := httptest.NewServer(mux)
	t.Cleanup(hs.Close)

	return &testEnv{http: hs, conn: conn, health: health, treasury: treasury}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.http.URL+path, rd)
	require.NoError(t, err)
	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func pageRequest(idx uint32) distribution.PageRequest {
	return distribution.PageRequest{
		WindowStart: testDay * testWindow,
		Participants: []distribution.ParticipantRecord{{
			StreamID:    testutil.AccountID("stream:a"),
			Destination: testutil.AccountID("dest:a"),
		}},
		Policy: distribution.PolicyParameters{
			Y0:                  2_000_000,
			InvestorFeeShareBps: 5_000,
			MinPayout:           1,
		},
		IsFinalPage: true,
		PageIndex:   &idx,
	}
}

func TestGateway_SinglePageDay(t *testing.T) {
	env := newTestEnv(t)

	var accrual RecordAccrualResponse
	code := env.do(t, http.MethodPost, "/v1/accruals", RecordAccrualRequest{
		AccrualID:  "acc-1",
		PositionID: testutil.AccountID("position"),
		Amount:     1_000_000,
	}, &accrual)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "acc-1", accrual.AccrualID)

	var receipt distribution.PageReceipt
	code = env.do(t, http.MethodPost, "/v1/pages", pageRequest(0), &receipt)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, receipt.ClaimedThisCall)
	assert.Equal(t, uint64(1_000_000), receipt.ClaimedQuoteForDay)
	assert.Equal(t, uint64(500_000), receipt.PageDistributed)
	assert.Equal(t, uint64(500_000), receipt.Remainder)
	assert.True(t, receipt.Final)

	var progress distribution.DayProgress
	code = env.do(t, http.MethodGet, fmt.Sprintf("/v1/days/%d/progress", testDay), nil, &progress)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, progress.Closed)
	assert.Equal(t, uint64(500_000), progress.RemainderPaid)
	assert.Equal(t, testDay+1, progress.DayID)

	assert.Zero(t, env.treasury.Balance())

	// Replaying the page is a no-op.
	var replay distribution.PageReceipt
	code = env.do(t, http.MethodPost, "/v1/pages", pageRequest(0), &replay)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, replay.Duplicate)

	// A new page for the closed day fails the gate.
	code = env.do(t, http.MethodPost, "/v1/pages", pageRequest(1), nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGateway_Errors(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound,
		env.do(t, http.MethodGet, "/v1/days/42/progress", nil, nil))
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodGet, "/v1/days/today/progress", nil, nil))
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/v1/pages", map[string]any{"bogus": 1}, nil))

	// The call time comes from the server clock only.
	withTs := map[string]any{
		"window_start": testDay * testWindow,
		"policy":       map[string]any{"y0": 2_000_000},
		"timestamp":    (testDay + 3650) * testWindow,
	}
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/v1/pages", withTs, nil))

	// No revenue accrued yet.
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/v1/pages", pageRequest(0), nil))

	// Query routes need Postgres.
	assert.Equal(t, http.StatusNotImplemented,
		env.do(t, http.MethodGet, "/v1/accounts/system:treasury:srv", nil, nil))
	assert.Equal(t, http.StatusNotImplemented,
		env.do(t, http.MethodPost, "/v1/admin/verify", nil, nil))
}

func TestGateway_Healthz(t *testing.T) {
	env := newTestEnv(t)

	env.health.SetReady(true)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil, nil))
}

func TestGRPC_ConfigErrorIsInvalidArgument(t *testing.T) {
	env := newTestEnv(t)

	req := pageRequest(0)
	req.Policy.Y0 = 0

	err := env.conn.Invoke(context.Background(), methodProcessPage, &req, new(distribution.PageReceipt))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("day 1: %w", storage.ErrNotFound), codes.NotFound},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{fmt.Errorf("%w: y0 is zero", distribution.ErrConfig), codes.InvalidArgument},
		{fmt.Errorf("%w: closed", distribution.ErrDayGate), codes.FailedPrecondition},
		{distribution.ErrInsufficientRevenue, codes.FailedPrecondition},
		{fmt.Errorf("%w: ledger down", distribution.ErrTransferFailure), codes.Unavailable},
		{fmt.Errorf("%w: oracle", distribution.ErrUpstream), codes.Unavailable},
		{distribution.ErrArithmetic, codes.Internal},
		{distribution.ErrInvariant, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(statusFromError(tt.err)))
		})
	}
}
