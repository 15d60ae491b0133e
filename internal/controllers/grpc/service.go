package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "xrdquant.v1.Quantifier"

const (
	fitMethod     = "/" + ServiceName + "/Fit"
	autoFitMethod = "/" + ServiceName + "/AutoFit"
)

// FitRequest is the Fit request message
type FitRequest struct {
	Library string             `json:"library"`
	Sample  *xrd.Diffractogram `json:"sample"`
	Options *fps.Options       `json:"options,omitempty"`
}

// AutoFitRequest is the AutoFit request message
type AutoFitRequest struct {
	Library string             `json:"library"`
	Sample  *xrd.Diffractogram `json:"sample"`
	Options *fps.AutoOptions   `json:"options,omitempty"`
}

// FitResponse is returned by both methods
type FitResponse struct {
	ID     string      `json:"id"`
	Result *fps.Result `json:"result"`
}

// QuantifierServer is the server API for the Quantifier service
type QuantifierServer interface {
	Fit(context.Context, *FitRequest) (*FitResponse, error)
	AutoFit(context.Context, *AutoFitRequest) (*FitResponse, error)
}

// RegisterQuantifierServer registers srv with s
func RegisterQuantifierServer(s grpc.ServiceRegistrar, srv QuantifierServer) {
	s.RegisterService(&quantifierServiceDesc, srv)
}

var quantifierServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QuantifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fit", Handler: fitHandler},
		{MethodName: "AutoFit", Handler: autoFitHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "xrdquant/v1/quantifier",
}

func fitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QuantifierServer).Fit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fitMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QuantifierServer).Fit(ctx, req.(*FitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func autoFitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AutoFitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QuantifierServer).AutoFit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: autoFitMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QuantifierServer).AutoFit(ctx, req.(*AutoFitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the Quantifier service
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Fit runs a full pattern summation fit on the server
func (c *Client) Fit(ctx context.Context, in *FitRequest, opts ...grpc.CallOption) (*FitResponse, error) {
	out := new(FitResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, fitMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// AutoFit runs an automated fit on the server
func (c *Client) AutoFit(ctx context.Context, in *AutoFitRequest, opts ...grpc.CallOption) (*FitResponse, error) {
	out := new(FitResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, autoFitMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
