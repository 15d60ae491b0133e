package grpc

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/chrissnell/xrdquant/internal/controllers/controllertest"
	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/config"
)

func dial(t *testing.T, store chan<- types.FitRecord) *grpc.ClientConn {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	ctrl, err := NewController(ctx, &wg, config.GRPCData{}, controllertest.Services(t, store), zap.NewNop().Sugar())
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	require.NoError(t, ctrl.Serve(lis))

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestFit(t *testing.T) {
	store := make(chan types.FitRecord, 1)
	client := NewClient(dial(t, store))
	lib := controllertest.Library(t)
	sample := controllertest.Mixture(t, lib, "grpc-1", map[string]float64{"COR": 25, "QUA": 25, "CAL": 50})

	resp, err := client.Fit(context.Background(), &FitRequest{Library: controllertest.LibraryName, Sample: sample})
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	cal, ok := resp.Result.Phase("CAL")
	require.True(t, ok)
	assert.InDelta(t, 50, cal.Concentration, 1e-4)

	rec := <-store
	assert.Equal(t, resp.ID, rec.ID.String())
	assert.Equal(t, types.SourceGRPC, rec.Source)
}

func TestAutoFitWithForcedPhase(t *testing.T) {
	client := NewClient(dial(t, nil))
	lib := controllertest.Library(t)
	sample := controllertest.Mixture(t, lib, "grpc-2", map[string]float64{"COR": 40, "QUA": 60})

	resp, err := client.AutoFit(context.Background(), &AutoFitRequest{
		Library: controllertest.LibraryName,
		Sample:  sample,
		Options: &fps.AutoOptions{Force: []string{"CAL"}},
	})
	require.NoError(t, err)
	_, ok := resp.Result.Phase("CAL")
	assert.True(t, ok, "forced phase retained")
	assert.InDelta(t, 100, resp.Result.Total(), 1e-6)
}

func TestErrorCodes(t *testing.T) {
	client := NewClient(dial(t, nil))
	lib := controllertest.Library(t)
	sample := controllertest.Mixture(t, lib, "s", map[string]float64{"QUA": 1})

	_, err := client.Fit(context.Background(), &FitRequest{Library: "missing", Sample: sample})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Fit(context.Background(), &FitRequest{
		Library: controllertest.LibraryName,
		Sample:  sample,
		Options: &fps.Options{Standard: "COR", StandardConc: 150},
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealthService(t *testing.T) {
	conn := dial(t, nil)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
