package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// CompleteMethod is the unary RPC served by the completion service. Request
// and response are google.protobuf.Struct values: {model, system, prompt}
// in, {text} out.
const CompleteMethod = "/logoforge.llm.v1.Completion/Complete"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errEmptyCompletion          = errors.New("completion response has no text")
)

// GrpcCompleterConfig holds connection settings for the completion service.
type GrpcCompleterConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcCompleterConfig returns default connection settings for addr.
func DefaultGrpcCompleterConfig(addr string) GrpcCompleterConfig {
	return GrpcCompleterConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcCompleter calls the language model over gRPC.
type GrpcCompleter struct {
	conn   *grpc.ClientConn
	logger *slog.Logger
}

// NewGrpcCompleter connects to the completion service and fails fast when it
// is unreachable.
func NewGrpcCompleter(cfg GrpcCompleterConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GrpcCompleter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to completion service at %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("completion service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to completion service", "address", cfg.Address)
	return &GrpcCompleter{conn: conn, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Complete sends one prompt and returns the reply text.
func (c *GrpcCompleter) Complete(ctx context.Context, comp Completion) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"model":  comp.Model,
		"system": comp.System,
		"prompt": comp.Prompt,
	})
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, CompleteMethod, req, resp); err != nil {
		return "", fmt.Errorf("completion call failed: %w", err)
	}
	text := resp.GetFields()["text"].GetStringValue()
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

// Close closes the gRPC connection.
func (c *GrpcCompleter) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// Ping reports whether the connection is usable.
func (c *GrpcCompleter) Ping(ctx context.Context) error {
	return waitForReady(ctx, c.conn)
}
