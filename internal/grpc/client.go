package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"asynccalc/internal/types"
)

// CalculatorClient calls calc.v1.Calculations as one user.
type CalculatorClient struct {
	conn  *grpc.ClientConn
	token string
}

// NewCalculatorClient connects to serverAddr. token is sent as a bearer token on every
// call. Extra options are appended to the defaults.
func NewCalculatorClient(ctx context.Context, serverAddr, token string, opts ...grpc.DialOption) (*CalculatorClient, error) {
	defaults := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(codecName),
			grpc.MaxCallRecvMsgSize(16*1024*1024),
			grpc.MaxCallSendMsgSize(16*1024*1024),
		),
	}
	conn, err := grpc.DialContext(ctx, serverAddr, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverAddr, err)
	}
	return &CalculatorClient{conn: conn, token: token}, nil
}

func (c *CalculatorClient) Close() error {
	return c.conn.Close()
}

func (c *CalculatorClient) Create(ctx context.Context, expression string) (*types.Calculation, error) {
	out := new(types.Calculation)
	if err := c.invoke(ctx, "Create", &types.CalculateRequest{Expression: expression}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CalculatorClient) Get(ctx context.Context, id string) (*types.Calculation, error) {
	out := new(types.Calculation)
	if err := c.invoke(ctx, "Get", &types.GetRequest{ID: id}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CalculatorClient) List(ctx context.Context, req *types.ListRequest) (*types.CalculationList, error) {
	out := new(types.CalculationList)
	if err := c.invoke(ctx, "List", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CalculatorClient) Cancel(ctx context.Context, id string) (*types.CalculationStatus, error) {
	out := new(types.CalculationStatus)
	if err := c.invoke(ctx, "Cancel", &types.CancelRequest{ID: id}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CalculatorClient) invoke(ctx context.Context, method string, req, resp any) error {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	return c.conn.Invoke(ctx, fullMethod(method), req, resp)
}
