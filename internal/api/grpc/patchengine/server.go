package patchengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/shim-installer/internal/domain/patchset"
)

// Service abstracts the patch engine the transport layer delegates to.
type Service interface {
	PatchBinary(ctx context.Context, path string, spec patchset.Spec) (patchset.Outcome, error)
}

// Server implements the PatchEngine gRPC API on top of a local Service.
// Each request is materialized in a private scratch directory, patched there
// and sent back, so the caller never shares a filesystem with the server.
type Server struct {
	// service applies the patches to the scratch copy.
	service Service
}

// errBadName is returned when the request names a path instead of a file.
var errBadName = errors.New("binary name must be a plain file name")

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// PatchBinary applies the requested patch sets to the binary carried in req.
func (s *Server) PatchBinary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	request, err := DecodeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err = validateName(request.Name); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err = request.Patches.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	scratchDir, err := os.MkdirTemp("", "shim-patchd-")
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to allocate scratch space")
	}

	// Best-effort cleanup.
	defer func() {
		_ = os.RemoveAll(scratchDir)
	}()

	path := filepath.Join(scratchDir, request.Name)
	if err = os.WriteFile(path, request.Content, 0o600); err != nil {
		return nil, status.Error(codes.Internal, "unable to stage binary")
	}

	outcome, err := s.service.PatchBinary(ctx, path, request.Patches)
	if err != nil {
		return nil, status.Error(codes.Aborted, err.Error())
	}

	response := &Response{Outcome: outcome}

	if outcome == patchset.OutcomePatched {
		if response.Content, err = os.ReadFile(path); err != nil {
			return nil, status.Error(codes.Internal, "unable to read patched binary")
		}
	}

	encoded, err := EncodeResponse(response)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return encoded, nil
}

// validateName rejects names that would escape the scratch directory.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("%q: %w", name, errBadName)
	}

	return nil
}
