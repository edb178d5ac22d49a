package server

import (
	"FeeDistributor/internal/distribution"
	"FeeDistributor/internal/query"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// StartHTTPGateway serves HTTP/JSON routes that proxy to the gRPC server.
// Blocks until ctx is cancelled.
func (s *GRPCServer) StartHTTPGateway(ctx context.Context) error {
	conn, err := grpc.NewClient(s.grpcAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}
	defer conn.Close()

	mux, err := NewGatewayMux(conn)
	if err != nil {
		return err
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/livez", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	}
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:              s.httpAddr,
		Handler:           httpMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("HTTP gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.httpAddr).Str("grpc", s.grpcAddr).Msg("HTTP gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NewGatewayMux builds the HTTP routes over an established client connection.
// /healthz is answered by the gRPC health service behind conn.
func NewGatewayMux(conn *grpc.ClientConn) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)))
	gw := &gateway{conn: conn}

	routes := []struct {
		method, pattern string
		handler         runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/pages", gw.processPage},
		{http.MethodGet, "/v1/days/{day_id}/progress", gw.getProgress},
		{http.MethodGet, "/v1/days/{day_id}/receipts", gw.listReceipts},
		{http.MethodPost, "/v1/accruals", gw.recordAccrual},
		{http.MethodGet, "/v1/accounts/{account_path}", gw.getAccount},
		{http.MethodGet, "/v1/accounts/{account_path}/journals", gw.listJournals},
		{http.MethodPost, "/v1/admin/verify", gw.verifyIntegrity},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", r.method, r.pattern, err)
		}
	}
	return mux, nil
}

type gateway struct {
	conn *grpc.ClientConn
}

func (g *gateway) processPage(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req distribution.PageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	g.invoke(w, r, methodProcessPage, &req, new(distribution.PageReceipt))
}

func (g *gateway) getProgress(w http.ResponseWriter, r *http.Request, params map[string]string) {
	day, ok := int64Param(w, params["day_id"], "day_id")
	if !ok {
		return
	}
	g.invoke(w, r, methodGetProgress, &GetProgressRequest{DayID: day}, new(distribution.DayProgress))
}

func (g *gateway) listReceipts(w http.ResponseWriter, r *http.Request, params map[string]string) {
	day, ok := int64Param(w, params["day_id"], "day_id")
	if !ok {
		return
	}
	req := &ListReceiptsRequest{DayID: day}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, ok := int64Param(w, v, "limit")
		if !ok {
			return
		}
		req.Limit = int(n)
	}
	if v := q.Get("after_sequence"); v != "" {
		if req.AfterSequence, ok = int64Param(w, v, "after_sequence"); !ok {
			return
		}
	}
	g.invoke(w, r, methodListReceipts, req, new(ListReceiptsResponse))
}

func (g *gateway) recordAccrual(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req RecordAccrualRequest
	if !decodeBody(w, r, &req) {
		return
	}
	g.invoke(w, r, methodRecordAccrual, &req, new(RecordAccrualResponse))
}

func (g *gateway) getAccount(w http.ResponseWriter, r *http.Request, params map[string]string) {
	req := &GetAccountRequest{AccountPath: params["account_path"]}
	g.invoke(w, r, methodGetAccount, req, new(query.AccountTotalsResponse))
}

func (g *gateway) listJournals(w http.ResponseWriter, r *http.Request, params map[string]string) {
	req := &ListJournalsRequest{AccountPath: params["account_path"]}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, ok := int64Param(w, v, "limit")
		if !ok {
			return
		}
		req.Limit = int(n)
	}
	if v := q.Get("before_sequence"); v != "" {
		var ok bool
		if req.BeforeSequence, ok = int64Param(w, v, "before_sequence"); !ok {
			return
		}
	}
	g.invoke(w, r, methodListJournals, req, new(ListJournalsResponse))
}

func (g *gateway) verifyIntegrity(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	g.invoke(w, r, methodVerifyIntegrity, &VerifyIntegrityRequest{}, new(query.IntegrityReport))
}

func (g *gateway) invoke(w http.ResponseWriter, r *http.Request, method string, req, resp any) {
	if err := g.conn.Invoke(r.Context(), method, req, resp, grpc.CallContentSubtype(codecName)); err != nil {
		st := status.Convert(err)
		writeJSON(w, runtime.HTTPStatusFromCode(st.Code()), map[string]any{
			"code":    st.Code().String(),
			"message": st.Message(),
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": "InvalidArgument", "message": err.Error()})
		return false
	}
	return true
}

func int64Param(w http.ResponseWriter, raw, name string) (int64, bool) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":    "InvalidArgument",
			"message": fmt.Sprintf("%s: %v", name, err),
		})
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
