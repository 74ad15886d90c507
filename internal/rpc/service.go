package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Service names.
const (
	StatusServiceName       = "inbox.v1.StatusService"
	ConversationServiceName = "inbox.v1.ConversationService"
	MessageServiceName      = "inbox.v1.MessageService"
)

// StatusServiceServer reports daemon health and triggers syncs.
type StatusServiceServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*StatusResponse, error)
	Refresh(context.Context, *RefreshRequest) (*RefreshResponse, error)
}

// ConversationServiceServer exposes the conversation store.
type ConversationServiceServer interface {
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	GetConversation(context.Context, *wrapperspb.StringValue) (*Conversation, error)
	DeleteConversation(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	RenameContact(context.Context, *RenameContactRequest) (*Conversation, error)
	WatchUpdates(*WatchRequest, grpc.ServerStreamingServer[Event]) error
}

// MessageServiceServer reads and sends messages.
type MessageServiceServer interface {
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
}

// unary builds a method descriptor that decodes Req and dispatches to call.
func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var StatusServiceDesc = grpc.ServiceDesc{
	ServiceName: StatusServiceName,
	HandlerType: (*StatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(StatusServiceName, "GetStatus", StatusServiceServer.GetStatus),
		unary(StatusServiceName, "Refresh", StatusServiceServer.Refresh),
	},
}

var ConversationServiceDesc = grpc.ServiceDesc{
	ServiceName: ConversationServiceName,
	HandlerType: (*ConversationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ConversationServiceName, "ListConversations", ConversationServiceServer.ListConversations),
		unary(ConversationServiceName, "GetConversation", ConversationServiceServer.GetConversation),
		unary(ConversationServiceName, "DeleteConversation", ConversationServiceServer.DeleteConversation),
		unary(ConversationServiceName, "RenameContact", ConversationServiceServer.RenameContact),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchUpdates",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(WatchRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(ConversationServiceServer).WatchUpdates(in, &grpc.GenericServerStream[WatchRequest, Event]{ServerStream: stream})
			},
		},
	},
}

var MessageServiceDesc = grpc.ServiceDesc{
	ServiceName: MessageServiceName,
	HandlerType: (*MessageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MessageServiceName, "ListMessages", MessageServiceServer.ListMessages),
		unary(MessageServiceName, "SendMessage", MessageServiceServer.SendMessage),
	},
}

func RegisterStatusServiceServer(s grpc.ServiceRegistrar, srv StatusServiceServer) {
	s.RegisterService(&StatusServiceDesc, srv)
}

func RegisterConversationServiceServer(s grpc.ServiceRegistrar, srv ConversationServiceServer) {
	s.RegisterService(&ConversationServiceDesc, srv)
}

func RegisterMessageServiceServer(s grpc.ServiceRegistrar, srv MessageServiceServer) {
	s.RegisterService(&MessageServiceDesc, srv)
}
