package orchestratorrpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/roasbeef/prreview/internal/hosting"
	"github.com/roasbeef/prreview/internal/orchestrate"
	"github.com/roasbeef/prreview/internal/reportmd"
	"github.com/roasbeef/prreview/internal/review"
)

type fakeHost struct {
	prs []hosting.OpenPR
}

func (f *fakeHost) Diff(context.Context, string, string, int) (string, error) { return "", nil }
func (f *fakeHost) ChangedFiles(context.Context, string, string, int) ([]string, error) {
	return nil, nil
}
func (f *fakeHost) ListOpenPRs(context.Context, string, string, string) ([]hosting.OpenPR, error) {
	return f.prs, nil
}
func (f *fakeHost) PostReviewComment(context.Context, string, string, int, string, review.ValidatedIssue) error {
	return nil
}
func (f *fakeHost) PostReviewSummary(context.Context, string, string, int, []review.ValidatedIssue, reportmd.SummaryStats) error {
	return nil
}
func (f *fakeHost) ApprovePR(context.Context, string, string, int, string) error      { return nil }
func (f *fakeHost) RequestChanges(context.Context, string, string, int, string) error { return nil }
func (f *fakeHost) Mergeable(context.Context, string, string, int) (hosting.MergeableState, error) {
	return hosting.MergeableState{}, nil
}
func (f *fakeHost) UpdateBranch(context.Context, string, string, int) error { return nil }
func (f *fakeHost) CombinedStatus(context.Context, string, string, string) (hosting.CIStatus, error) {
	return hosting.CIStatus{}, nil
}
func (f *fakeHost) Merge(context.Context, string, string, int, string, string) (string, error) {
	return "", nil
}
func (f *fakeHost) DeleteBranch(context.Context, string, string, string) error { return nil }

var _ hosting.Client = (*fakeHost)(nil)

func newTestOrchestrator(t *testing.T) *orchestrate.Orchestrator {
	t.Helper()

	now := time.Unix(1700000000, 0)
	host := &fakeHost{prs: []hosting.OpenPR{
		{Number: 1, Branch: "b1", Base: "main", ChangedFiles: []string{"pkg/a.go"}, CreatedAt: now},
		{Number: 2, Branch: "b2", Base: "b1", ChangedFiles: []string{"pkg/b.go"}, CreatedAt: now.Add(time.Minute)},
	}}

	orch := orchestrate.New("acme", "widgets", host, orchestrate.DefaultConfig())
	_, err := orch.LoadOpenPRs(context.Background(), "main")
	require.NoError(t, err)
	orch.Analyze()

	return orch
}

func TestServerGetQueueStatus(t *testing.T) {
	srv := NewServer(DefaultServerConfig(), newTestOrchestrator(t))

	resp, err := srv.GetQueueStatus(context.Background(), &GetQueueStatusRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Status, 2)
	require.Equal(t, "pending", resp.Status[1])
}

func TestServerGetPRFoundAndNotFound(t *testing.T) {
	srv := NewServer(DefaultServerConfig(), newTestOrchestrator(t))

	resp, err := srv.GetPR(context.Background(), &GetPRRequest{PRNumber: 2})
	require.NoError(t, err)
	require.True(t, resp.Found)
	require.Equal(t, "b2", resp.Branch)
	require.Empty(t, resp.DependsOn)

	missing, err := srv.GetPR(context.Background(), &GetPRRequest{PRNumber: 99})
	require.NoError(t, err)
	require.False(t, missing.Found)
}

func TestServerIsBlocked(t *testing.T) {
	srv := NewServer(DefaultServerConfig(), newTestOrchestrator(t))

	resp, err := srv.IsBlocked(context.Background(), &IsBlockedRequest{PRNumber: 2})
	require.NoError(t, err)
	require.True(t, resp.Blocked)

	resp, err = srv.IsBlocked(context.Background(), &IsBlockedRequest{PRNumber: 1})
	require.NoError(t, err)
	require.False(t, resp.Blocked)
}

func TestServiceOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	t.Cleanup(func() { lis.Close() })

	grpcServer := grpc.NewServer()
	srv := NewServer(DefaultServerConfig(), newTestOrchestrator(t))
	RegisterOrchestratorStatusServer(grpcServer, srv)

	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	client := NewOrchestratorStatusClient(conn)

	resp, err := client.GetQueueStatus(context.Background(), &GetQueueStatusRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Status, 2)
}
