package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/pipeline"
)

const (
	ComparisonServiceName = "pomatcher.v1.ComparisonService"

	compareFilesMethod = "/" + ComparisonServiceName + "/CompareFiles"
	listHistoryMethod  = "/" + ComparisonServiceName + "/ListHistory"
)

// ComparisonServer is the gRPC surface. Messages are well-known types so no
// generated code is needed.
type ComparisonServer interface {
	CompareFiles(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListHistory(ctx context.Context, in *emptypb.Empty) (*structpb.ListValue, error)
}

var ComparisonServiceDesc = grpc.ServiceDesc{
	ServiceName: ComparisonServiceName,
	HandlerType: (*ComparisonServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CompareFiles", Handler: compareFilesHandler},
		{MethodName: "ListHistory", Handler: listHistoryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pomatcher/v1/comparison.proto",
}

func compareFilesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ComparisonServer).CompareFiles(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: compareFilesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ComparisonServer).CompareFiles(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listHistoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ComparisonServer).ListHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listHistoryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ComparisonServer).ListHistory(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

const outsideUploadDirMessage = "invoice_path and po_path must be relative paths inside the upload directory"

// ComparisonService implements ComparisonServer over files already stored in
// the upload directory. Request paths are relative to that directory.
type ComparisonService struct {
	compare   Comparer
	history   HistoryLister
	uploadDir string
	logger    *slog.Logger
}

func NewComparisonService(cmp Comparer, history HistoryLister, uploadDir string, logger *slog.Logger) *ComparisonService {
	if logger == nil {
		logger = slog.Default()
	}
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if abs, err := filepath.Abs(uploadDir); err == nil {
		uploadDir = abs
	}
	return &ComparisonService{compare: cmp, history: history, uploadDir: uploadDir, logger: logger}
}

// resolveUpload maps a client-supplied name to a file under the upload
// directory. Absolute names and names that climb out with ".." are refused.
func (s *ComparisonService) resolveUpload(name string) (string, bool) {
	if !filepath.IsLocal(name) {
		return "", false
	}
	return filepath.Join(s.uploadDir, name), true
}

func (s *ComparisonService) CompareFiles(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	invPath := strings.TrimSpace(fields["invoice_path"].GetStringValue())
	poPath := strings.TrimSpace(fields["po_path"].GetStringValue())
	if invPath == "" || poPath == "" {
		return nil, common.InvalidArgumentError("invoice_path and po_path are required")
	}
	invFile, invOK := s.resolveUpload(invPath)
	poFile, poOK := s.resolveUpload(poPath)
	if !invOK || !poOK {
		common.LoggerFromContext(ctx, s.logger).Warn("grpc.compare.path_rejected", "invoice_path", invPath, "po_path", poPath)
		return nil, common.InvalidArgumentError(outsideUploadDirMessage)
	}

	res, err := s.compare.Compare(ctx, pipeline.CompareRequest{
		InvoicePath: invFile,
		InvoiceName: filepath.Base(invFile),
		POPath:      poFile,
		POName:      filepath.Base(poFile),
	})
	if err != nil {
		return nil, common.ToGRPCError(err)
	}

	var m map[string]any
	if err := roundTripJSON(res, &m); err != nil {
		common.LoggerFromContext(ctx, s.logger).Error("grpc.compare.encode_failed", "error", err)
		return nil, common.InternalError("encode result")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalError("encode result")
	}
	return out, nil
}

func (s *ComparisonService) ListHistory(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	recs, err := s.history.List(ctx)
	if err != nil {
		common.LoggerFromContext(ctx, s.logger).Error("grpc.history.failed", "error", err)
		return nil, common.ToGRPCError(err)
	}
	var items []any
	if err := roundTripJSON(recs, &items); err != nil {
		return nil, common.InternalError("encode history")
	}
	out, err := structpb.NewList(items)
	if err != nil {
		return nil, common.InternalError("encode history")
	}
	return out, nil
}

// roundTripJSON converts v into the generic JSON shape structpb accepts.
func roundTripJSON(v any, out any) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return json.Unmarshal(bs, out)
}

// UnaryLogging attaches a request ID (from x-request-id metadata, or new) and
// logs each call.
func UnaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				id = v[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		log := logger.With("req_id", id)
		ctx = common.WithLogger(common.WithRequestID(ctx, id), log)

		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("grpc.request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// NewGRPCServer builds a server with the comparison and health services registered.
func NewGRPCServer(svc ComparisonServer, logger *slog.Logger) (*grpc.Server, *health.Server) {
	gs := grpc.NewServer(grpc.UnaryInterceptor(UnaryLogging(logger)))
	gs.RegisterService(&ComparisonServiceDesc, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ComparisonServiceName, healthpb.HealthCheckResponse_SERVING)
	return gs, hs
}
