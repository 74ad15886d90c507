package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/matheus3301/inbox/internal/lock"
	"github.com/matheus3301/inbox/internal/profile"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/tui/client"
	"github.com/matheus3301/inbox/internal/validation"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// profileName is the resolved profile, for error hints.
var profileName string

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	profileName = profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fatalf("error: %v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "profiles" {
		switch optionalArg(args, 1) {
		case "list":
			cmdProfilesList(*jsonFlag)
		case "use":
			cmdProfilesUse(requireArg(args, 2, "profiles use <name>"))
		default:
			fatalf("usage: inboxctl profiles list|use <name>")
		}
		return
	}

	socketPath := profile.SocketPath(profileName)
	c, err := client.New(socketPath)
	if err != nil {
		fatalf("error: cannot connect to daemon for profile %q: %v", profileName, err)
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmdWatch(ctx, c, optionalArg(args, 1), *jsonFlag)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "refresh":
		cmdRefresh(ctx, c, optionalArg(args, 1), *jsonFlag)
	case "conversations":
		cmdConversations(ctx, c, args[1:], *jsonFlag)
	case "show":
		cmdShow(ctx, c, requireArg(args, 1, "show <uuid>"), *jsonFlag)
	case "messages":
		cmdMessages(ctx, c, requireArg(args, 1, "messages <uuid>"), *jsonFlag)
	case "send":
		uuid := requireArg(args, 1, "send <uuid> <text>")
		cmdSend(ctx, c, uuid, strings.Join(args[2:], " "), *jsonFlag)
	case "rename":
		uuid := requireArg(args, 1, "rename <uuid> <name>")
		cmdRename(ctx, c, uuid, strings.Join(args[2:], " "), *jsonFlag)
	case "delete":
		cmdDelete(ctx, c, requireArg(args, 1, "delete <uuid>"))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: inboxctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                       Show daemon status")
	fmt.Fprintln(os.Stderr, "  refresh [uuid]               Refetch conversations (and one thread)")
	fmt.Fprintln(os.Stderr, "  conversations [limit [off]]  List conversations, newest first")
	fmt.Fprintln(os.Stderr, "  show <uuid>                  Show one conversation")
	fmt.Fprintln(os.Stderr, "  messages <uuid>              Show a conversation's messages")
	fmt.Fprintln(os.Stderr, "  send <uuid> <text>           Queue a message")
	fmt.Fprintln(os.Stderr, "  rename <uuid> <name>         Rename a contact")
	fmt.Fprintln(os.Stderr, "  delete <uuid>                Delete a conversation")
	fmt.Fprintln(os.Stderr, "  watch [uuid]                 Stream daemon events")
	fmt.Fprintln(os.Stderr, "  profiles list                List known profiles")
	fmt.Fprintln(os.Stderr, "  profiles use <name>          Make a profile the default")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func fail(err error) {
	st, ok := status.FromError(err)
	if !ok {
		fatalf("error: %v", err)
	}
	if st.Code() == codes.Unavailable && !client.Probe(profile.SocketPath(profileName)) {
		if pid, held := lock.Holder(profile.Dir(profileName)); held {
			fatalf("error: daemon for profile %q (PID %d) is not answering; see %s", profileName, pid, profile.LogPath(profileName))
		}
		fatalf("error: daemon for profile %q is not running; start it with: inboxd --profile %s", profileName, profileName)
	}
	fatalf("error: %s", st.Message())
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func requireArg(args []string, i int, usage string) string {
	if len(args) <= i || args[i] == "" {
		fatalf("usage: inboxctl %s", usage)
	}
	return args[i]
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.GetStatus(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Profile:       %s\n", resp.Profile)
	fmt.Printf("Status:        %s\n", resp.Status)
	fmt.Printf("API:           %s\n", resp.APIURL)
	fmt.Printf("Uptime:        %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
	fmt.Printf("Conversations: %d (%s)\n", resp.ConversationCount, resp.LoadStatus)
	if resp.LoadError != "" {
		fmt.Printf("Last error:    %s\n", resp.LoadError)
	}
	if resp.LastSyncUnixMs > 0 {
		fmt.Printf("Last sync:     %s\n", time.UnixMilli(resp.LastSyncUnixMs).Format(time.RFC3339))
	}
}

func cmdRefresh(ctx context.Context, c *client.Client, uuid string, jsonOut bool) {
	resp, err := c.Refresh(ctx, &rpc.RefreshRequest{ConversationUUID: uuid})
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Refreshed %d conversations.\n", resp.ConversationCount)
}

func cmdConversations(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	req := &rpc.ListConversationsRequest{}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fatalf("invalid limit %q", args[0])
		}
		req.Limit = n
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			fatalf("invalid offset %q", args[1])
		}
		req.Offset = n
	}
	resp, err := c.ListConversations(ctx, req)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	if len(resp.Conversations) == 0 {
		if resp.LoadError != "" {
			fmt.Printf("No conversations (%s).\n", resp.LoadError)
		} else {
			fmt.Println("No conversations.")
		}
		return
	}
	for _, conv := range resp.Conversations {
		unread := " "
		if conv.Unread {
			unread = "*"
		}
		preview := ""
		if conv.LastMessage != nil {
			preview = conv.LastMessage.Preview
		}
		fmt.Printf("%s %-36s %-24s %s\n", unread, conv.UUID, truncate(conv.Name, 24), truncate(oneLine(preview), 50))
	}
	if shown := req.Offset + len(resp.Conversations); shown < resp.Total {
		fmt.Printf("(%d of %d)\n", shown, resp.Total)
	}
}

func cmdShow(ctx context.Context, c *client.Client, uuid string, jsonOut bool) {
	conv, err := c.GetConversation(ctx, uuid)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(conv)
		return
	}
	fmt.Printf("UUID:    %s\n", conv.UUID)
	fmt.Printf("Name:    %s\n", conv.Name)
	fmt.Printf("Phone:   %s\n", conv.PhoneNumber)
	fmt.Printf("Created: %s\n", conv.CreatedAt)
	if conv.ClosedAt != "" {
		fmt.Printf("Closed:  %s\n", conv.ClosedAt)
	}
	if conv.Source != "" {
		fmt.Printf("Source:  %s\n", conv.Source)
	}
	if lm := conv.LastMessage; lm != nil {
		fmt.Printf("Last:    [%s] %s: %s\n", lm.Time, lm.From, oneLine(lm.Preview))
	}
}

func cmdMessages(ctx context.Context, c *client.Client, uuid string, jsonOut bool) {
	resp, err := c.ListMessages(ctx, &rpc.ListMessagesRequest{ConversationUUID: uuid, Fresh: true})
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	if len(resp.Messages) == 0 {
		fmt.Println("No messages.")
		return
	}
	for _, m := range resp.Messages {
		who := "them"
		switch {
		case m.IsNote:
			who = "note"
		case m.IsBot:
			who = "bot"
		case m.FromMe:
			who = "me"
		}
		fmt.Printf("[%s] %-4s %s\n", m.Time, who, m.Text)
		for _, a := range m.Attachments {
			fmt.Printf("       attachment: %s\n", a)
		}
	}
}

func cmdSend(ctx context.Context, c *client.Client, uuid, text string, jsonOut bool) {
	if text == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fatalf("read stdin: %v", err)
		}
		text = string(b)
	}
	resp, err := c.SendMessage(ctx, &rpc.SendMessageRequest{ConversationUUID: uuid, Text: text})
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Queued %s (%s)\n", resp.ClientMsgID, resp.Status)
}

func cmdRename(ctx context.Context, c *client.Client, uuid, name string, jsonOut bool) {
	clean, err := validation.Check(name)
	if err != nil {
		var ve *validation.Error
		if errors.As(err, &ve) {
			fatalf("error: %v", ve.Err)
		}
		fail(err)
	}
	conv, err := c.RenameContact(ctx, &rpc.RenameContactRequest{UUID: uuid, Name: clean})
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(conv)
		return
	}
	fmt.Printf("Renamed %s to %q\n", conv.UUID, conv.Name)
}

func cmdDelete(ctx context.Context, c *client.Client, uuid string) {
	if err := c.DeleteConversation(ctx, uuid); err != nil {
		fail(err)
	}
	fmt.Printf("Deleted %s\n", uuid)
}

func cmdWatch(ctx context.Context, c *client.Client, uuid string, jsonOut bool) {
	stream, err := c.WatchUpdates(ctx, &rpc.WatchRequest{ConversationUUID: uuid})
	if err != nil {
		fail(err)
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			fail(err)
		}
		if jsonOut {
			outputJSON(evt)
			continue
		}
		at := time.UnixMilli(evt.OccurredAtUnixMs).Format("15:04:05")
		fmt.Printf("%s %-24s %s %s\n", at, evt.Kind, evt.ConversationUUID, evt.Payload)
	}
}

type profileInfo struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	DaemonRunning bool   `json:"daemon_running"`
}

func cmdProfilesUse(name string) {
	if err := profile.SetDefault(name); err != nil {
		fatalf("error: %v", err)
	}
	fmt.Printf("Default profile set to %q.\n", name)
}

func cmdProfilesList(jsonOut bool) {
	entries, err := os.ReadDir(filepath.Join(profile.BaseDir(), "profiles"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fatalf("error: %v", err)
	}
	var profiles []profileInfo
	for _, e := range entries {
		if !e.IsDir() || profile.ValidateName(e.Name()) != nil {
			continue
		}
		profiles = append(profiles, profileInfo{
			Name:          e.Name(),
			Path:          profile.Dir(e.Name()),
			DaemonRunning: client.Probe(profile.SocketPath(e.Name())),
		})
	}
	if jsonOut {
		outputJSON(profiles)
		return
	}
	if len(profiles) == 0 {
		fmt.Println("No profiles found.")
		return
	}
	for _, p := range profiles {
		running := "stopped"
		if p.DaemonRunning {
			running = "running"
		}
		fmt.Printf("%-20s %s (%s)\n", p.Name, p.Path, running)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
