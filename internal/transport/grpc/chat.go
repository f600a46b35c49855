package grpcx

import (
	"bytes"
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/transport/dto"
)

// ChatSvc is the part of service.ChatService exposed over gRPC.
type ChatSvc interface {
	Send(ctx context.Context, callerID string, in service.SendInput) (*domain.Message, error)
	History(ctx context.Context, callerID, userA, userB string, page domain.Page) ([]domain.Message, string, error)
	Conversations(ctx context.Context, callerID, userID string) ([]domain.ConversationSummary, error)
	MarkRead(ctx context.Context, callerID string, ids []string, roomID string) (int, error)
	UnreadCount(ctx context.Context, callerID string) (int, error)
}

// ChatServer is the chat.v1.ChatService contract. Requests and responses are
// google.protobuf.Struct values carrying the same JSON shapes as the HTTP API.
type ChatServer interface {
	Send(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Conversations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkRead(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UnreadCount(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var chatServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Send", ChatServer.Send),
		unary("History", ChatServer.History),
		unary("Conversations", ChatServer.Conversations),
		unary("MarkRead", ChatServer.MarkRead),
		unary("UnreadCount", ChatServer.UnreadCount),
	},
	Metadata: "chat/v1/chat.proto",
}

func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&chatServiceDesc, srv)
}

func unary(method string, call func(ChatServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ChatServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ChatServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

type chatServer struct {
	chat ChatSvc
}

func NewChatServer(chat ChatSvc) ChatServer {
	return &chatServer{chat: chat}
}

func (s *chatServer) Send(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dto.SendMessageRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	msg, err := s.chat.Send(ctx, auth.UserIDFromCtx(ctx), req.Input())
	if err != nil {
		return nil, err
	}
	return encodeStruct(dto.FromMessage(*msg))
}

func (s *chatServer) History(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dto.HistoryRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	items, next, err := s.chat.History(ctx, auth.UserIDFromCtx(ctx), req.UserA, req.UserB,
		domain.Page{After: req.After, Limit: req.Limit})
	if err != nil {
		return nil, err
	}
	return encodeStruct(dto.HistoryResponse{Items: dto.FromMessages(items), NextCursor: next})
}

func (s *chatServer) Conversations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dto.ConversationsRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	sums, err := s.chat.Conversations(ctx, auth.UserIDFromCtx(ctx), req.UserID)
	if err != nil {
		return nil, err
	}
	return encodeStruct(dto.ConversationsResponse{Items: dto.FromSummaries(sums)})
}

func (s *chatServer) MarkRead(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dto.MarkReadRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	n, err := s.chat.MarkRead(ctx, auth.UserIDFromCtx(ctx), req.MessageIDs, req.Room())
	if err != nil {
		return nil, err
	}
	return encodeStruct(dto.MarkReadResponse{Success: true, Updated: n})
}

func (s *chatServer) UnreadCount(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	n, err := s.chat.UnreadCount(ctx, auth.UserIDFromCtx(ctx))
	if err != nil {
		return nil, err
	}
	return encodeStruct(dto.UnreadCountResponse{Count: n})
}

// decodeStruct applies the same rules as the HTTP decoder: no unknown fields,
// then the struct's validate tags.
func decodeStruct(in *structpb.Struct, dst any) error {
	data, err := in.MarshalJSON()
	if err != nil {
		return domain.Invalid("body", "invalid request: "+err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("body", "invalid request: "+err.Error())
	}
	return dto.Validate(dst)
}

func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return out, nil
}
