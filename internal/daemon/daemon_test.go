package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/config"
	"github.com/matheus3301/inbox/internal/profile"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/status"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// fakeAPI is a minimal conversation API backed by in-memory state.
type fakeAPI struct {
	mu    sync.Mutex
	names map[string]string
	sent  []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Header.Get("Authorization") != "Bearer secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "contacts":
		var contacts []map[string]any
		for _, id := range []string{"a", "b"} {
			contacts = append(contacts, map[string]any{"uuid": id, "name": f.names[id], "createdAt": "2024-01-01T00:00:00Z"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"contacts": contacts})
	case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "messages":
		msgs := []map[string]any{{"uuid": "m1", "text": "hello", "createdAt": "2024-01-01T10:00:00Z", "from": "them"}}
		for i, text := range f.sent {
			msgs = append(msgs, map[string]any{"text": text, "createdAt": time.Date(2024, 1, 2, 0, i, 0, 0, time.UTC).Format(time.RFC3339)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": msgs})
	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "messages":
		var body struct{ Text string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.sent = append(f.sent, body.Text)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]any{"uuid": "srv-1", "text": body.Text, "createdAt": "2024-01-02T00:00:00Z"}})
	case r.Method == http.MethodPatch && len(parts) == 2:
		var body struct{ Name string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.names[parts[1]] = body.Name
		_ = json.NewEncoder(w).Encode(map[string]any{"contact": map[string]any{"uuid": parts[1], "name": body.Name}})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Contact not found"}`))
	}
}

func shortTempDir(t *testing.T, pattern string) string {
	t.Helper()
	// Use a short path to avoid macOS 104-char Unix socket limit.
	dir, err := os.MkdirTemp("/tmp", pattern)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func dial(t *testing.T, socketPath string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestDaemonLifecycle(t *testing.T) {
	home := shortTempDir(t, "inbox-test-*")
	t.Setenv(profile.HomeEnv, home)

	api := &fakeAPI{names: map[string]string{"a": "Ann", "b": "Bob"}}
	ts := httptest.NewServer(api)
	defer ts.Close()
	t.Setenv(config.EnvAPIURL, ts.URL)
	t.Setenv(config.EnvAPIKey, "secret")

	socketPath := filepath.Join(home, "d.sock")
	app := fx.New(
		Module(Params{ProfileName: "test", SocketPath: socketPath}),
		fx.NopLogger,
	)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, "socket", func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	})
	conn := dial(t, socketPath)
	client := rpc.NewClient(conn)

	var st *rpc.StatusResponse
	waitFor(t, "READY", func() bool {
		var err error
		st, err = client.GetStatus(ctx)
		return err == nil && st.Status == string(status.Ready)
	})
	if st.Profile != "test" || st.ConversationCount != 2 || st.APIURL != ts.URL {
		t.Errorf("status = %+v", st)
	}

	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil || hc.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("health = %v, %v", hc, err)
	}

	list, err := client.ListConversations(ctx, &rpc.ListConversationsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if list.Total != 2 || list.LoadStatus != "succeeded" {
		t.Errorf("list = %+v", list)
	}

	msgs, err := client.ListMessages(ctx, &rpc.ListMessagesRequest{ConversationUUID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs.Messages) != 1 || msgs.Messages[0].Text != "hello" || msgs.Messages[0].FromMe {
		t.Errorf("messages = %+v", msgs.Messages)
	}

	stream, err := client.WatchUpdates(ctx, &rpc.WatchRequest{ConversationUUID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	// Give the stream time to subscribe before producing events.
	time.Sleep(100 * time.Millisecond)

	sent, err := client.SendMessage(ctx, &rpc.SendMessageRequest{ConversationUUID: "a", Text: "  hi there "})
	if err != nil {
		t.Fatal(err)
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			t.Fatalf("stream: %v", err)
		}
		if evt.Kind == bus.KindSendAck {
			if evt.ConversationUUID != "a" || evt.Profile != "test" || evt.EventID == "" {
				t.Errorf("ack event = %+v", evt)
			}
			if !strings.Contains(string(evt.Payload), sent.ClientMsgID) {
				t.Errorf("ack payload %s lacks client id %s", evt.Payload, sent.ClientMsgID)
			}
			break
		}
	}
	if len(api.sent) != 1 || api.sent[0] != "hi there" {
		t.Errorf("server received %q", api.sent)
	}

	renamed, err := client.RenameContact(ctx, &rpc.RenameContactRequest{UUID: "b", Name: "Robert"})
	if err != nil {
		t.Fatal(err)
	}
	if renamed.Name != "Robert" {
		t.Errorf("renamed = %+v", renamed)
	}

	if err := app.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket not removed on stop")
	}
}

func TestDaemonHydratesFromDisk(t *testing.T) {
	home := shortTempDir(t, "inbox-hyd-*")
	t.Setenv(profile.HomeEnv, home)

	api := &fakeAPI{names: map[string]string{"a": "Ann", "b": "Bob"}}
	ts := httptest.NewServer(api)
	t.Setenv(config.EnvAPIURL, ts.URL)
	t.Setenv(config.EnvAPIKey, "secret")

	socketPath := filepath.Join(home, "d.sock")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := fx.New(Module(Params{ProfileName: "p", SocketPath: socketPath}), fx.NopLogger)
	if err := first.Start(ctx); err != nil {
		t.Fatal(err)
	}
	client := rpc.NewClient(dial(t, socketPath))
	waitFor(t, "first sync", func() bool {
		st, err := client.GetStatus(ctx)
		return err == nil && st.ConversationCount == 2
	})
	if err := first.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	// The API is gone; the second daemon still serves the persisted list.
	ts.Close()
	second := fx.New(Module(Params{ProfileName: "p", SocketPath: socketPath}), fx.NopLogger)
	if err := second.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = second.Stop(ctx) }()

	client = rpc.NewClient(dial(t, socketPath))
	var st *rpc.StatusResponse
	waitFor(t, "DEGRADED", func() bool {
		var err error
		st, err = client.GetStatus(ctx)
		return err == nil && st.Status == string(status.Degraded)
	})
	if st.ConversationCount != 2 {
		t.Errorf("hydrated count = %d, want 2", st.ConversationCount)
	}
	if st.LastSyncUnixMs == 0 {
		t.Error("last sync checkpoint not carried over")
	}
}

func TestDaemonRequiresCredentials(t *testing.T) {
	home := shortTempDir(t, "inbox-cred-*")
	t.Setenv(profile.HomeEnv, home)
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvAPIKey, "")

	app := fx.New(
		Module(Params{ProfileName: "nocreds", SocketPath: filepath.Join(home, "d.sock")}),
		fx.NopLogger,
	)
	err := app.Err()
	if err == nil {
		t.Fatal("expected missing credentials error")
	}
	if !strings.Contains(err.Error(), config.EnvAPIKey) {
		t.Errorf("error = %v, want mention of %s", err, config.EnvAPIKey)
	}
}

// TestNewServerUsesSocketOverride verifies that NewServer accepts Params (not a
// bare string) and binds the overridden socket path.
func TestNewServerUsesSocketOverride(t *testing.T) {
	tmpDir := shortTempDir(t, "inbox-fx-*")
	socketPath := filepath.Join(tmpDir, "d.sock")

	srv, err := NewServer(Params{ProfileName: "fxtest", SocketPath: socketPath}, zap.NewNop(), nil, nil, nil)
	if err != nil {
		t.Fatalf("NewServer() with Params failed: %v", err)
	}
	if _, statErr := os.Stat(socketPath); statErr != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, statErr)
	}
	info, _ := os.Stat(socketPath)
	if info.Mode().Perm() != 0600 {
		t.Errorf("socket perm = %o, want 0600", info.Mode().Perm())
	}
	srv.Stop(context.Background())
}
