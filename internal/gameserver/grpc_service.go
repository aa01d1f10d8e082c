package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/destiny/internal/game/dialogue"
	"github.com/cory-johannsen/destiny/internal/game/killer"
	"github.com/cory-johannsen/destiny/internal/game/location"
	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/internal/game/survival"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "destiny.v1.GameService"

// EventBuffer is the per-subscriber event buffer of Subscribe.
const EventBuffer = 64

// GameServiceServer is the server API of destiny.v1.GameService.
// Messages are google.protobuf.Struct so the action vocabulary can grow
// without regenerating code.
type GameServiceServer interface {
	Act(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Subscribe(req *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// GameServiceDesc describes destiny.v1.GameService.
var GameServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GameServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Act", Handler: actHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "destiny/v1/game.proto",
}

// RegisterGameServiceServer registers srv on s.
func RegisterGameServiceServer(s grpc.ServiceRegistrar, srv GameServiceServer) {
	s.RegisterService(&GameServiceDesc, srv)
}

func actHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GameServiceServer).Act(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Act"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GameServiceServer).Act(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(GameServiceServer).Subscribe(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// GameServiceClient is the client API of destiny.v1.GameService.
type GameServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewGameServiceClient wraps cc.
func NewGameServiceClient(cc grpc.ClientConnInterface) *GameServiceClient {
	return &GameServiceClient{cc: cc}
}

// Act sends one action and decodes the outcome into a generic map.
func (c *GameServiceClient) Act(ctx context.Context, a Action, opts ...grpc.CallOption) (map[string]any, error) {
	req, err := toStruct(a)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Act", req, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Subscribe opens the event stream.
func (c *GameServiceClient) Subscribe(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &GameServiceDesc.Streams[0], "/"+ServiceName+"/Subscribe", opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// GRPCService serves a Game over gRPC.
type GRPCService struct {
	game   *Game
	logger *zap.Logger
}

// NewGRPCService creates a GRPCService for game.
//
// Precondition: game and logger must be non-nil.
func NewGRPCService(game *Game, logger *zap.Logger) *GRPCService {
	return &GRPCService{game: game, logger: logger}
}

// Act decodes req as an Action, performs it and encodes the Outcome.
//
// Postcondition: game rule violations map to InvalidArgument,
// FailedPrecondition or NotFound; everything else is Internal.
func (s *GRPCService) Act(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var a Action
	if err := fromStruct(req, &a); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decoding action: %v", err)
	}
	out, err := s.game.Act(ctx, a)
	if err != nil {
		return nil, status.Error(ErrorCode(err), err.Error())
	}
	res, err := toStruct(out)
	if err != nil {
		s.logger.Error("encoding outcome", zap.String("action", string(a.Type)), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "encoding outcome: %v", err)
	}
	return res, nil
}

// Subscribe streams every game event until the client goes away.
func (s *GRPCService) Subscribe(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	events, cancel := s.game.Bus().Channel(EventBuffer)
	defer cancel()
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			fields, err := ev.Fields()
			if err != nil {
				s.logger.Warn("dropping unencodable event", zap.String("event", string(ev.Name)), zap.Error(err))
				continue
			}
			msg, err := structpb.NewStruct(fields)
			if err != nil {
				s.logger.Warn("dropping unencodable event", zap.String("event", string(ev.Name)), zap.Error(err))
				continue
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// ErrorCode classifies an Act error as a gRPC status code.
func ErrorCode(err error) codes.Code {
	var req *survival.RequirementError
	if errors.As(err, &req) {
		return codes.FailedPrecondition
	}
	switch {
	case errors.Is(err, ErrUnknownAction),
		errors.Is(err, ErrMissingTarget),
		errors.Is(err, ErrMissingText),
		errors.Is(err, ErrUnknownResponse),
		errors.Is(err, state.ErrUnknownDifficulty),
		errors.Is(err, state.ErrInvalidSlot),
		errors.Is(err, dialogue.ErrUnknownChoice),
		errors.Is(err, dialogue.ErrTextRequired),
		errors.Is(err, survival.ErrUnknownTactic):
		return codes.InvalidArgument
	case errors.Is(err, ErrNotPlaying),
		errors.Is(err, ErrPaused),
		errors.Is(err, ErrNoEncounter),
		errors.Is(err, survival.ErrPlayerDead),
		errors.Is(err, survival.ErrAlreadyHiding),
		errors.Is(err, survival.ErrOutOfAmmo),
		errors.Is(err, killer.ErrAlreadyEngaged),
		errors.Is(err, dialogue.ErrNoSession),
		errors.Is(err, dialogue.ErrNotConversation):
		return codes.FailedPrecondition
	case errors.Is(err, ErrUnknownNPC),
		errors.Is(err, state.ErrNoSave),
		errors.Is(err, location.ErrUnknownLocation),
		errors.Is(err, dialogue.ErrUnknownNode),
		errors.Is(err, survival.ErrUnknownSpot),
		errors.Is(err, survival.ErrUnknownWeapon),
		errors.Is(err, survival.ErrUnknownRoute):
		return codes.NotFound
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Internal
}

// toStruct encodes v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("action fields: %w", err)
	}
	return nil
}
