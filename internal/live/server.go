// ABOUTME: Server side of WorkspaceControl backed by domain adapters
// ABOUTME: Also serves the HTTP manage endpoint used for best-effort force-close

package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/2389/coven-migrate/internal/auth"
	"github.com/2389/coven-migrate/internal/store"
)

// ManagePath is the HTTP path of the manage endpoint
const ManagePath = "/api/v1/manage"

// OperationForceClose is the manage operation closing a workspace
const OperationForceClose = "force-close"

// ForceCloseFunc is invoked when a client asks the service to drop a workspace
type ForceCloseFunc func(ctx context.Context, workspace string) error

// ControlServer implements ControlService for one workspace
type ControlServer struct {
	workspace    string
	serverID     string
	adapters     store.AdapterSource
	onForceClose ForceCloseFunc
	logger       *slog.Logger

	mu          sync.Mutex
	forceCloses int
}

// NewControlServer creates a server for workspace. onForceClose may be nil.
func NewControlServer(workspace string, adapters store.AdapterSource, onForceClose ForceCloseFunc, logger *slog.Logger) *ControlServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlServer{
		workspace:    workspace,
		serverID:     uuid.NewString(),
		adapters:     adapters,
		onForceClose: onForceClose,
		logger:       logger.With("component", "live"),
	}
}

// ForceCloses returns how many force-close requests were handled
func (s *ControlServer) ForceCloses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forceCloses
}

// NewGRPCServer returns a gRPC server with the control service registered
// behind admin token authentication
func (s *ControlServer) NewGRPCServer(tokens auth.TokenVerifier) *grpc.Server {
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(auth.UnaryInterceptor(tokens, true, s.logger)),
	)
	RegisterControlService(server, s)
	return server
}

func (s *ControlServer) checkWorkspace(ctx context.Context) error {
	claims := auth.FromContext(ctx)
	if claims == nil {
		return status.Error(codes.Unauthenticated, "not authenticated")
	}
	if claims.Workspace != s.workspace {
		return status.Errorf(codes.PermissionDenied, "token is for workspace %s", claims.Workspace)
	}
	return nil
}

func (s *ControlServer) adapter(domain store.Domain) (store.DomainAdapter, error) {
	adapter, err := store.Lookup(s.adapters, domain)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	return adapter, nil
}

func storeError(err error) error {
	if errors.Is(err, store.ErrInvalidDomain) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// Hello confirms the session and identifies the server
func (s *ControlServer) Hello(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.checkWorkspace(ctx); err != nil {
		return nil, err
	}
	claims := auth.FromContext(ctx)
	s.logger.Info("upgrade session opened", "workspace", s.workspace, "email", claims.Email, "mode", claims.Extra[auth.ExtraMode])
	return newStruct(map[string]any{
		"workspace": s.workspace,
		"serverId":  s.serverID,
		"email":     claims.Email,
	})
}

// FindAll returns rows of a domain matching a filter
func (s *ControlServer) FindAll(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.checkWorkspace(ctx); err != nil {
		return nil, err
	}
	req := in.AsMap()
	domain, _ := req["domain"].(string)

	raw, _ := req["filter"].(map[string]any)
	filter, err := store.FilterFromMap(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	adapter, err := s.adapter(store.Domain(domain))
	if err != nil {
		return nil, err
	}
	docs, err := adapter.RawFindAll(ctx, store.Domain(domain), filter)
	if err != nil {
		return nil, storeError(err)
	}
	return newStruct(map[string]any{"docs": docsToList(docs)})
}

// Upload inserts or replaces rows
func (s *ControlServer) Upload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.checkWorkspace(ctx); err != nil {
		return nil, err
	}
	req := in.AsMap()
	domain, _ := req["domain"].(string)

	adapter, err := s.adapter(store.Domain(domain))
	if err != nil {
		return nil, err
	}
	if err := adapter.Upload(ctx, store.Domain(domain), docsFromList(req["docs"])); err != nil {
		return nil, storeError(err)
	}
	return &structpb.Struct{}, nil
}

// Clean deletes rows by ID
func (s *ControlServer) Clean(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.checkWorkspace(ctx); err != nil {
		return nil, err
	}
	req := in.AsMap()
	domain, _ := req["domain"].(string)

	adapter, err := s.adapter(store.Domain(domain))
	if err != nil {
		return nil, err
	}
	if err := adapter.Clean(ctx, store.Domain(domain), stringsFromList(req["ids"])); err != nil {
		return nil, storeError(err)
	}
	return &structpb.Struct{}, nil
}

// ForceClose drops every session of the workspace so it reloads its model
func (s *ControlServer) ForceClose(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.checkWorkspace(ctx); err != nil {
		return nil, err
	}
	if err := s.forceClose(ctx); err != nil {
		return nil, status.Errorf(codes.Internal, "force-close: %v", err)
	}
	return &structpb.Struct{}, nil
}

func (s *ControlServer) forceClose(ctx context.Context) error {
	s.mu.Lock()
	s.forceCloses++
	s.mu.Unlock()

	s.logger.Info("force-closing workspace", "workspace", s.workspace)
	if s.onForceClose != nil {
		return s.onForceClose(ctx, s.workspace)
	}
	return nil
}

// ManageHandler serves PUT ManagePath?token=..&operation=force-close&wsId=..
func (s *ControlServer) ManageHandler(tokens auth.TokenVerifier) http.Handler {
	handle := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		if op := q.Get("operation"); op != OperationForceClose {
			http.Error(w, `{"error":"unsupported operation"}`, http.StatusBadRequest)
			return
		}
		ws := q.Get("wsId")
		claims := auth.FromContext(r.Context())
		if ws != s.workspace || claims.Workspace != s.workspace {
			http.Error(w, `{"error":"unknown workspace"}`, http.StatusNotFound)
			return
		}

		if err := s.forceClose(r.Context()); err != nil {
			s.logger.Error("force-close failed", "workspace", ws, "error", err)
			http.Error(w, `{"error":"force-close failed"}`, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux := http.NewServeMux()
	mux.Handle(ManagePath, auth.HTTPAuthMiddleware(tokens)(auth.RequireAdminHTTP()(handle)))
	return mux
}
