// ABOUTME: gRPC client of WorkspaceControl authenticated as a privileged upgrade session
// ABOUTME: Implements Conn over a single client connection

package live

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/2389/coven-migrate/internal/auth"
	"github.com/2389/coven-migrate/internal/store"
)

// DialConfig describes how to reach a workspace's control service
type DialConfig struct {
	Endpoint  string // ws://, wss://, http(s)://, grpc:// URL or a raw gRPC target
	Workspace string
	Signer    auth.TokenSigner
	Options   []grpc.DialOption
	Logger    *slog.Logger
}

// GRPCConn is a Conn over gRPC
type GRPCConn struct {
	cc        *grpc.ClientConn
	token     string
	workspace string
	serverID  string
	logger    *slog.Logger
}

// grpcTarget strips URL schemes the transactor address may carry
func grpcTarget(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https", "grpc":
		return u.Host
	}
	return endpoint
}

// DialGRPC opens an upgrade session and verifies it with Hello
func DialGRPC(ctx context.Context, cfg DialConfig) (*GRPCConn, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("dialing %s: no token signer", cfg.Endpoint)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	token, err := cfg.Signer.Generate(auth.SystemAccountEmail, cfg.Workspace, auth.UpgradeExtra())
	if err != nil {
		return nil, fmt.Errorf("generating upgrade token: %w", err)
	}

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, cfg.Options...)
	cc, err := grpc.NewClient(grpcTarget(cfg.Endpoint), opts...)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", cfg.Endpoint, err)
	}

	conn := &GRPCConn{
		cc:        cc,
		token:     token,
		workspace: cfg.Workspace,
		logger:    logger.With("component", "live", "workspace", cfg.Workspace),
	}

	out, err := conn.invoke(ctx, MethodHello, &structpb.Struct{})
	if err != nil {
		_ = cc.Close()
		return nil, fmt.Errorf("opening upgrade session: %w", err)
	}
	conn.serverID, _ = out.AsMap()["serverId"].(string)
	conn.logger.Info("connected to live workspace", "endpoint", cfg.Endpoint, "server_id", conn.serverID)
	return conn, nil
}

// Dialer returns a DialFunc for use with NewConnector
func Dialer(cfg DialConfig) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		return DialGRPC(ctx, cfg)
	}
}

// ServerID returns the identifier reported by the server on Hello
func (c *GRPCConn) ServerID() string { return c.serverID }

func (c *GRPCConn) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(auth.BearerMetadata(ctx, c.token), FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindAll returns rows of a domain matching filter
func (c *GRPCConn) FindAll(ctx context.Context, domain store.Domain, filter store.Filter) ([]store.Doc, error) {
	in, err := newStruct(map[string]any{"domain": string(domain), "filter": filter.ToMap()})
	if err != nil {
		return nil, err
	}
	out, err := c.invoke(ctx, MethodFindAll, in)
	if err != nil {
		return nil, fmt.Errorf("finding in %s: %w", domain, err)
	}
	return docsFromList(out.AsMap()["docs"]), nil
}

// Upload inserts or replaces rows
func (c *GRPCConn) Upload(ctx context.Context, domain store.Domain, docs []store.Doc) error {
	in, err := newStruct(map[string]any{"domain": string(domain), "docs": docsToList(docs)})
	if err != nil {
		return err
	}
	if _, err := c.invoke(ctx, MethodUpload, in); err != nil {
		return fmt.Errorf("uploading to %s: %w", domain, err)
	}
	return nil
}

// Clean deletes rows by ID
func (c *GRPCConn) Clean(ctx context.Context, domain store.Domain, ids []string) error {
	list := make([]any, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	in, err := newStruct(map[string]any{"domain": string(domain), "ids": list})
	if err != nil {
		return err
	}
	if _, err := c.invoke(ctx, MethodClean, in); err != nil {
		return fmt.Errorf("cleaning %s: %w", domain, err)
	}
	return nil
}

// SendForceClose asks the server to drop every session of the workspace
func (c *GRPCConn) SendForceClose(ctx context.Context) error {
	if _, err := c.invoke(ctx, MethodForceClose, &structpb.Struct{}); err != nil {
		return err
	}
	c.logger.Info("sent force-close")
	return nil
}

// Close closes the client connection
func (c *GRPCConn) Close() error {
	return c.cc.Close()
}

// httpEndpoint rewrites a ws(s) transactor URL to http(s)
func httpEndpoint(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	switch {
	case strings.HasPrefix(endpoint, "wss://"):
		return "https://" + strings.TrimPrefix(endpoint, "wss://")
	case strings.HasPrefix(endpoint, "ws://"):
		return "http://" + strings.TrimPrefix(endpoint, "ws://")
	}
	return endpoint
}
