package rpc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestCodec(t *testing.T) {
	var c Codec
	if c.Name() != "json" {
		t.Errorf("name = %q", c.Name())
	}

	b, err := c.Marshal(wrapperspb.String("abc"))
	if err != nil {
		t.Fatal(err)
	}
	var sv wrapperspb.StringValue
	if err := c.Unmarshal(b, &sv); err != nil || sv.GetValue() != "abc" {
		t.Errorf("wrapper round trip = %q, %v", sv.GetValue(), err)
	}

	b, err = c.Marshal(&SendMessageRequest{ConversationUUID: "u", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"conversation_uuid":"u","text":"hi"}` {
		t.Errorf("json = %s", b)
	}

	var out SendMessageRequest
	if err := c.Unmarshal(nil, &out); err != nil {
		t.Errorf("empty payload: %v", err)
	}
	if err := c.Unmarshal([]byte("{"), &out); err == nil {
		t.Error("expected decode error")
	}
}

type fakeServices struct{}

func (fakeServices) GetStatus(context.Context, *emptypb.Empty) (*StatusResponse, error) {
	return &StatusResponse{Profile: "main", Status: "READY"}, nil
}

func (fakeServices) Refresh(context.Context, *RefreshRequest) (*RefreshResponse, error) {
	return &RefreshResponse{ConversationCount: 3}, nil
}

func (fakeServices) ListConversations(_ context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	return &ListConversationsResponse{Total: req.Limit}, nil
}

func (fakeServices) GetConversation(_ context.Context, req *wrapperspb.StringValue) (*Conversation, error) {
	if req.GetValue() != "a" {
		return nil, status.Error(codes.NotFound, "missing")
	}
	return &Conversation{UUID: "a", Name: "Ann"}, nil
}

func (fakeServices) DeleteConversation(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

func (fakeServices) RenameContact(_ context.Context, req *RenameContactRequest) (*Conversation, error) {
	return &Conversation{UUID: req.UUID, Name: req.Name}, nil
}

func (fakeServices) WatchUpdates(req *WatchRequest, stream grpc.ServerStreamingServer[Event]) error {
	for i := range 3 {
		if err := stream.Send(&Event{Kind: "messages.changed", ConversationUUID: req.ConversationUUID, PayloadVersion: i}); err != nil {
			return err
		}
	}
	return nil
}

func (fakeServices) ListMessages(_ context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	return &ListMessagesResponse{ConversationUUID: req.ConversationUUID, Messages: []*Message{{ID: "m1"}}}, nil
}

func (fakeServices) SendMessage(_ context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	return &SendMessageResponse{ClientMsgID: req.ClientMsgID, Status: "queued"}, nil
}

func TestServicesOverUnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("/tmp", "inbox-rpc-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()
	socketPath := filepath.Join(dir, "d.sock")

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	srv := grpc.NewServer()
	RegisterStatusServiceServer(srv, fakeServices{})
	RegisterConversationServiceServer(srv, fakeServices{})
	RegisterMessageServiceServer(srv, fakeServices{})
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient("unix://"+socketPath, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	c := NewClient(conn)
	ctx := context.Background()

	st, err := c.GetStatus(ctx)
	if err != nil || st.Status != "READY" {
		t.Fatalf("GetStatus = %+v, %v", st, err)
	}
	list, err := c.ListConversations(ctx, &ListConversationsRequest{Limit: 7})
	if err != nil || list.Total != 7 {
		t.Errorf("ListConversations = %+v, %v", list, err)
	}
	conv, err := c.GetConversation(ctx, "a")
	if err != nil || conv.Name != "Ann" {
		t.Errorf("GetConversation = %+v, %v", conv, err)
	}
	if _, err := c.GetConversation(ctx, "z"); status.Code(err) != codes.NotFound {
		t.Errorf("GetConversation(z) code = %s", status.Code(err))
	}
	if err := c.DeleteConversation(ctx, "a"); err != nil {
		t.Errorf("DeleteConversation: %v", err)
	}
	sent, err := c.SendMessage(ctx, &SendMessageRequest{ConversationUUID: "a", Text: "hi", ClientMsgID: "c1"})
	if err != nil || sent.ClientMsgID != "c1" {
		t.Errorf("SendMessage = %+v, %v", sent, err)
	}

	stream, err := c.WatchUpdates(ctx, &WatchRequest{ConversationUUID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		evt, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv %d: %v", i, err)
		}
		if evt.ConversationUUID != "a" || evt.PayloadVersion != i {
			t.Errorf("event %d = %+v", i, evt)
		}
	}
}
