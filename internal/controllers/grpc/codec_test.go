package grpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

func TestStructCodec(t *testing.T) {
	in := &FitRequest{
		Library: "clays",
		Sample:  &xrd.Diffractogram{Name: "s1", TwoTheta: []float64{10, 10.02}, Counts: []float64{5, 7.5}},
		Options: &fps.Options{Refs: []string{"COR", "QUA"}, Standard: "COR", StandardConc: 20, MaxIter: 300},
	}

	data, err := structCodec{}.Marshal(in)
	require.NoError(t, err)

	var wire structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &wire))
	assert.Equal(t, "clays", wire.Fields["library"].GetStringValue())
	opts := wire.Fields["options"].GetStructValue()
	require.NotNil(t, opts)
	assert.Equal(t, 20.0, opts.Fields["std_conc"].GetNumberValue())

	var out FitRequest
	require.NoError(t, structCodec{}.Unmarshal(data, &out))
	assert.Equal(t, in, &out)

	assert.Error(t, structCodec{}.Unmarshal([]byte{0xff, 0xff}, &out))
}
