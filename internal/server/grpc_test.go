package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/llm"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/repository"
)

func dialBufconn(t *testing.T, svc ComparisonServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(svc, quietLogger())
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPC_CompareFiles(t *testing.T) {
	cmp := &stubComparer{result: &llm.ComparisonResult{
		InvoiceNumber: "INV-1",
		OverallStatus: "APPROVED",
		VendorMatch:   llm.VendorMatch{Match: true, InvoiceVendor: "Acme", POVendor: "Acme"},
	}}
	dir := t.TempDir()
	conn := dialBufconn(t, NewComparisonService(cmp, stubHistory{}, dir, quietLogger()))

	in, _ := structpb.NewStruct(map[string]any{"invoice_path": "inv.pdf", "po_path": "batch-7/po.png"})
	out := new(structpb.Struct)
	if err := conn.Invoke(context.Background(), compareFilesMethod, in, out); err != nil {
		t.Fatalf("CompareFiles: %v", err)
	}
	f := out.GetFields()
	if f["invoice_number"].GetStringValue() != "INV-1" {
		t.Errorf("out = %v", out)
	}
	if !f["vendor_match"].GetStructValue().GetFields()["match"].GetBoolValue() {
		t.Errorf("vendor_match = %v", f["vendor_match"])
	}
	if cmp.got.InvoiceName != "inv.pdf" || cmp.got.POPath != filepath.Join(dir, "batch-7", "po.png") {
		t.Errorf("request = %+v", cmp.got)
	}
}

func TestGRPC_CompareFilesErrors(t *testing.T) {
	conn := dialBufconn(t, NewComparisonService(&stubComparer{}, stubHistory{}, t.TempDir(), quietLogger()))
	in, _ := structpb.NewStruct(map[string]any{"invoice_path": "inv.pdf"})
	err := conn.Invoke(context.Background(), compareFilesMethod, in, new(structpb.Struct))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("missing po_path: code = %v", status.Code(err))
	}

	failing := &stubComparer{err: common.NewAppError(common.CodePDFExtraction, "Failed to extract text from PDF: inv.pdf", common.ErrPDFExtraction)}
	conn = dialBufconn(t, NewComparisonService(failing, stubHistory{}, t.TempDir(), quietLogger()))
	in, _ = structpb.NewStruct(map[string]any{"invoice_path": "inv.pdf", "po_path": "po.pdf"})
	err = conn.Invoke(context.Background(), compareFilesMethod, in, new(structpb.Struct))
	st, _ := status.FromError(err)
	if st.Code() != codes.Internal || st.Message() != "Failed to extract text from PDF: inv.pdf" {
		t.Errorf("status = %v %q", st.Code(), st.Message())
	}
}

func TestGRPC_CompareFilesRejectsPathsOutsideUploadDir(t *testing.T) {
	cmp := &stubComparer{}
	conn := dialBufconn(t, NewComparisonService(cmp, stubHistory{}, t.TempDir(), quietLogger()))

	tests := []struct {
		name    string
		invoice string
		po      string
	}{
		{"parent of upload dir", "../secret.pdf", "po.png"},
		{"climbs out after a subdir", "inv.pdf", "batch/../../po.png"},
		{"absolute with dot-dot", "/etc/../root/private/payroll.pdf", "po.png"},
		{"absolute po", "inv.pdf", "/home/other/secret.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := structpb.NewStruct(map[string]any{"invoice_path": tt.invoice, "po_path": tt.po})
			err := conn.Invoke(context.Background(), compareFilesMethod, in, new(structpb.Struct))
			st, _ := status.FromError(err)
			if st.Code() != codes.InvalidArgument {
				t.Fatalf("code = %v, want InvalidArgument", st.Code())
			}
			if st.Message() != "invoice_path and po_path must be relative paths inside the upload directory" {
				t.Errorf("message = %q", st.Message())
			}
			if cmp.got.InvoicePath != "" || cmp.got.POPath != "" {
				t.Errorf("comparer received %+v", cmp.got)
			}
		})
	}
}

func TestGRPC_ListHistoryAndHealth(t *testing.T) {
	hist := stubHistory{recs: []*repository.HistoryRecord{
		{ID: 7, Timestamp: "2026-10-16T10:00:00.000000Z", InvoiceFile: "a", POFile: "b",
			Result: llm.ComparisonResult{InvoiceNumber: "INV-7"}},
	}}
	conn := dialBufconn(t, NewComparisonService(&stubComparer{}, hist, t.TempDir(), quietLogger()))

	out := new(structpb.ListValue)
	if err := conn.Invoke(context.Background(), listHistoryMethod, &emptypb.Empty{}, out); err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(out.GetValues()) != 1 {
		t.Fatalf("values = %v", out)
	}
	rec := out.GetValues()[0].GetStructValue().GetFields()
	if rec["id"].GetNumberValue() != 7 ||
		rec["result"].GetStructValue().GetFields()["invoice_number"].GetStringValue() != "INV-7" {
		t.Errorf("record = %v", rec)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ComparisonServiceName})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("health = %v, %v", resp, err)
	}
}
