package combined

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/chrissnell/xrdquant/internal/controllers/controllertest"
	grpcctl "github.com/chrissnell/xrdquant/internal/controllers/grpc"
	"github.com/chrissnell/xrdquant/internal/controllers/restserver"
	"github.com/chrissnell/xrdquant/pkg/config"
)

func TestServesRESTAndGRPCOnOnePort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	svc := controllertest.Services(t, nil)
	c, err := NewController(ctx, &wg, config.RESTServerData{ListenAddr: "127.0.0.1"}, svc, zap.NewNop().Sugar())
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, c.Serve(l))
	addr := l.Addr().String()

	resp, err := http.Get("http://" + addr + "/libraries")
	require.NoError(t, err)
	var libs []restserver.LibrarySummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&libs))
	resp.Body.Close()
	require.Len(t, libs, 1)
	assert.Equal(t, controllertest.LibraryName, libs[0].Name)

	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer cc.Close()

	lib := controllertest.Library(t)
	sample := controllertest.Mixture(t, lib, "dual", map[string]float64{"QUA": 25, "CAL": 75})
	callCtx, callCancel := context.WithTimeout(ctx, 10*time.Second)
	defer callCancel()
	out, err := grpcctl.NewClient(cc).Fit(callCtx, &grpcctl.FitRequest{Library: controllertest.LibraryName, Sample: sample})
	require.NoError(t, err)
	q, ok := out.Result.Phase("QUA")
	require.True(t, ok)
	assert.InDelta(t, 25, q.Concentration, 1e-3)

	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("controllers did not stop")
	}
}

func TestRejectsTLS(t *testing.T) {
	_, err := NewController(context.Background(), &sync.WaitGroup{}, config.RESTServerData{Cert: "c.pem", Key: "k.pem"},
		controllertest.Services(t, nil), zap.NewNop().Sugar())
	assert.Error(t, err)
}
