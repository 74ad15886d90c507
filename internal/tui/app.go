package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/tui/client"
	"github.com/matheus3301/inbox/internal/tui/keys"
	"github.com/matheus3301/inbox/internal/tui/model"
	"github.com/matheus3301/inbox/internal/tui/ui"
	"github.com/matheus3301/inbox/internal/tui/views"
	"github.com/matheus3301/inbox/internal/validation"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// Page ids double as keybinding scopes.
const (
	pageConversations = "conversations"
	pageChat          = "chat"
	pageContact       = "contact"
	pageHelp          = "help"
)

const (
	// RefreshInterval is how often the header and the open thread are refreshed.
	RefreshInterval = 5 * time.Second
	watchRetry      = 2 * time.Second
)

// App is the TUI shell: header, pages, breadcrumbs and flash bar.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	pages    *ui.Pages
	vm       *model.ViewModel
	client   *client.Client
	registry *keys.Registry
	logger   *zap.Logger
	profile  string

	info     *ui.ProfileInfo
	logo     *ui.Logo
	menu     *ui.Menu
	crumbs   *ui.Crumbs
	flashBar *ui.FlashBar
	prompt   *ui.Prompt
	root     *tview.Flex

	convList *views.ConversationList
	thread   *views.MessageThread
	contact  *views.ContactView
	help     *views.HelpView

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp builds the TUI for profileName on top of a connected client.
func NewApp(c *client.Client, profileName string, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		pages:    ui.NewPages(),
		vm:       model.NewViewModel(c),
		client:   c,
		registry: keys.NewRegistry(),
		logger:   logger,
		profile:  profileName,
		info:     ui.NewProfileInfo(theme),
		logo:     ui.NewLogo(theme),
		menu:     ui.NewMenu(theme),
		crumbs:   ui.NewCrumbs(theme, profileName),
		flashBar: ui.NewFlashBar(theme),
		prompt:   ui.NewPrompt(theme),
		convList: views.NewConversationList(theme),
		thread:   views.NewMessageThread(theme),
		contact:  views.NewContactView(theme),
		help:     views.NewHelpView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func runeAction(r rune, desc string, visible bool, fn func()) *keys.Action {
	return &keys.Action{Key: tcell.KeyRune, Rune: r, Description: desc, Visible: visible, Handler: fn}
}

func (a *App) setupBindings() {
	r := a.registry
	r.AddGlobal("command", runeAction(':', "Command", true, func() { a.showPrompt(ui.PromptCommand, "") }))
	r.AddGlobal("help", runeAction('?', "Help", true, func() { a.open(pageHelp) }))
	r.AddGlobal("quit", runeAction('q', "Quit", true, a.Stop))

	r.AddView(pageConversations, "open", &keys.Action{
		Key: tcell.KeyEnter, Description: "Open", Visible: true,
		Handler: func() { a.openChat(a.convList.Selected()) },
	})
	r.AddView(pageConversations, "jump", &keys.Action{
		Key: tcell.KeyRune, Rune: '1', Label: "1-9", Description: "Jump", Visible: true,
		Handler: func() { a.openChat(a.convList.ByIndex(1)) },
	})
	for n := 2; n <= 9; n++ {
		r.AddView(pageConversations, "jump-"+string(rune('0'+n)), runeAction(rune('0'+n), "", false, func() {
			a.openChat(a.convList.ByIndex(n))
		}))
	}
	r.AddView(pageConversations, "filter", runeAction('/', "Filter", true, func() {
		a.showPrompt(ui.PromptFilter, a.convList.Filter())
	}))
	r.AddView(pageConversations, "all", runeAction('0', "All", false, a.convList.ClearFilter))
	r.AddView(pageConversations, "contact", runeAction('c', "Contact", true, func() { a.openContact(a.convList.Selected()) }))
	r.AddView(pageConversations, "delete", runeAction('d', "Delete", true, func() { a.deleteConversation(a.convList.Selected()) }))
	r.AddView(pageConversations, "refresh", runeAction('r', "Refresh", true, func() { go a.refresh() }))

	r.AddView(pageChat, "compose", runeAction('i', "Compose", true, func() { a.app.SetFocus(a.thread.Composer()) }))
	r.AddView(pageChat, "contact", runeAction('c', "Contact", true, func() { a.openContact(a.vm.Active()) }))
	r.AddView(pageChat, "refresh", runeAction('r', "Refresh", true, func() { go a.refresh() }))
	r.AddView(pageChat, "back", &keys.Action{Key: tcell.KeyEscape, Description: "Back", Visible: true, Handler: a.back})

	r.AddView(pageContact, "back", &keys.Action{Key: tcell.KeyEscape, Description: "Back", Visible: true, Handler: a.back})
	r.AddView(pageHelp, "back", &keys.Action{Key: tcell.KeyEscape, Description: "Back", Visible: true, Handler: a.back})
}

func (a *App) setupCallbacks() {
	a.pages.SetOnChange(func(names []string) {
		a.crumbs.Update(names)
		a.menu.Update(a.registry.Hints(a.pages.Current()))
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			resp, err := a.vm.Send(a.ctx, text)
			switch {
			case err != nil:
				a.vm.Flash.Err("send failed", err)
			case resp != nil:
				a.vm.Flash.Infof("Sending...")
			}
		}()
	})

	a.contact.SetOnSave(func(id, name string) {
		go a.rename(id, name)
	})

	a.prompt.SetCompleter(func(text string) []string {
		convs := a.vm.GetConversations()
		names := make([]string, 0, len(convs))
		for _, c := range convs {
			names = append(names, c.Name)
		}
		return CompleteCommand(text, names)
	})
	a.prompt.SetOnChange(func(mode ui.PromptMode, text string) {
		if mode == ui.PromptFilter {
			a.convList.SetFilter(text)
		}
	})
	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptFilter {
			a.convList.SetFilter(text)
			return
		}
		if strings.TrimSpace(text) == "" {
			return
		}
		cmd, err := ParseCommand(text)
		if err != nil {
			a.vm.Flash.Warnf("%v", err)
			return
		}
		a.runCommand(cmd)
	})
	a.prompt.SetOnCancel(func(mode ui.PromptMode) {
		a.hidePrompt()
		if mode == ui.PromptFilter {
			a.convList.ClearFilter()
		}
	})
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.info, 44, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 18, 0, false)

	a.pages.Add(pageConversations, a.convList)
	a.pages.Add(pageChat, a.thread)
	a.pages.Add(pageContact, a.contact)
	a.pages.Add(pageHelp, a.help)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.info.Update(&ui.ProfileData{Profile: a.profile})
	a.pages.Root(pageConversations)
	a.app.SetRoot(a.root, true).SetFocus(a.convList)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		focused := a.app.GetFocus()
		if focused == a.prompt.InputField {
			return event
		}
		if event.Key() == tcell.KeyEscape && focused == a.thread.Composer() {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		// Text inputs get every key except Esc, which still navigates back.
		if _, ok := focused.(*tview.InputField); ok && event.Key() != tcell.KeyEscape {
			return event
		}
		if a.registry.HandleEvent(a.pages.Current(), event) {
			return nil
		}
		return event
	})
}

func (a *App) open(page string) {
	a.pages.Open(page)
	a.focusCurrent()
}

func (a *App) back() {
	popped, ok := a.pages.Back()
	if !ok {
		return
	}
	if popped == pageChat {
		a.vm.Close()
	}
	a.focusCurrent()
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageConversations:
		a.app.SetFocus(a.convList)
	case pageChat:
		a.app.SetFocus(a.thread.Messages())
	case pageContact:
		a.app.SetFocus(a.contact.NameField())
	case pageHelp:
		a.app.SetFocus(a.help)
	}
}

func (a *App) showPrompt(mode ui.PromptMode, initial string) {
	a.prompt.Activate(mode, initial)
	a.root.AddItem(a.prompt, 3, 0, false)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.RemoveItem(a.prompt)
	a.focusCurrent()
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.open(pageHelp)
	case "refresh":
		go a.refresh()
	case "open":
		for _, c := range a.vm.GetConversations() {
			if strings.EqualFold(c.Name, cmd.Args) || c.UUID == cmd.Args {
				a.openChat(c.UUID)
				return
			}
		}
		a.vm.Flash.Warnf("no conversation named %q", cmd.Args)
	case "rename":
		id := a.vm.Active()
		if a.pages.Current() == pageContact {
			id = a.contact.UUID()
		}
		if id == "" {
			a.vm.Flash.Warnf("open a conversation first")
			return
		}
		go a.rename(id, cmd.Args)
	}
}

func (a *App) openChat(id string) {
	if id == "" {
		return
	}
	name := id
	if c, ok := a.vm.Conversation(id); ok && c.Name != "" {
		name = c.Name
	}
	a.vm.Open(id)
	a.thread.SetConversation(id, name)
	a.pages.Root(pageConversations)
	a.open(pageChat)
	go a.loadThread(false)
}

func (a *App) openContact(id string) {
	c, ok := a.vm.Conversation(id)
	if !ok {
		return
	}
	a.contact.Update(c)
	a.open(pageContact)
}

// loadThread fetches the open thread and redraws it unless the load went stale.
func (a *App) loadThread(fresh bool) {
	applied, err := a.vm.LoadMessages(a.ctx, fresh)
	if err != nil {
		if !errors.Is(err, model.ErrNoConversation) {
			a.logger.Warn("load messages failed", zap.Error(err))
			a.vm.Flash.Err("load failed", err)
		}
		return
	}
	if !applied {
		return
	}
	msgs := a.vm.GetMessages()
	a.app.QueueUpdateDraw(func() {
		a.thread.Update(msgs)
	})
}

func (a *App) loadConversations() {
	if err := a.vm.LoadConversations(a.ctx); err != nil {
		a.logger.Warn("load conversations failed", zap.Error(err))
		return
	}
	convs, loadErr := a.vm.GetConversations(), a.vm.LoadError()
	a.app.QueueUpdateDraw(func() {
		a.convList.Update(convs, loadErr)
		if a.pages.Current() == pageContact {
			if c, ok := a.vm.Conversation(a.contact.UUID()); ok {
				a.contact.Update(c)
			}
		}
	})
}

func (a *App) loadStatus() {
	data := &ui.ProfileData{Profile: a.profile}
	if err := a.vm.LoadStatus(a.ctx); err == nil {
		st := a.vm.GetStatus()
		data = &ui.ProfileData{
			Profile:       st.Profile,
			API:           st.APIURL,
			Status:        st.Status,
			Conversations: st.ConversationCount,
			Watched:       st.Watched,
			Uptime:        time.Duration(st.UptimeMs) * time.Millisecond,
		}
		if st.LastSyncUnixMs > 0 {
			data.LastSync = time.UnixMilli(st.LastSyncUnixMs)
		}
	}
	a.app.QueueUpdateDraw(func() {
		a.info.Update(data)
		a.logo.SetState(data.Status)
	})
}

func (a *App) refresh() {
	if err := a.vm.Refresh(a.ctx); err != nil {
		a.vm.Flash.Err("refresh failed", err)
	} else {
		a.vm.Flash.Infof("Refreshed")
	}
	a.loadConversations()
	a.loadThread(false)
}

func (a *App) rename(id, name string) {
	if err := a.vm.Rename(a.ctx, id, name); err != nil {
		msg := ui.ErrorMessage(err)
		var ve *validation.Error
		if errors.As(err, &ve) {
			msg = ve.Err.Error()
		}
		a.app.QueueUpdateDraw(func() { a.contact.ShowError(msg) })
		a.vm.Flash.Err("rename failed", errors.New(msg))
		return
	}
	a.vm.Flash.Infof("Contact renamed")
	c, _ := a.vm.Conversation(id)
	convs, loadErr := a.vm.GetConversations(), a.vm.LoadError()
	a.app.QueueUpdateDraw(func() {
		a.convList.Update(convs, loadErr)
		if c == nil {
			return
		}
		a.contact.Update(c)
		if a.vm.Active() == id {
			a.thread.SetConversation(id, c.Name)
			a.pages.Refresh()
		}
	})
}

func (a *App) deleteConversation(id string) {
	if id == "" {
		return
	}
	a.convList.Update(withoutConversation(a.vm.GetConversations(), id), a.vm.LoadError())
	go func() {
		if err := a.vm.Delete(a.ctx, id); err != nil {
			a.vm.Flash.Err("delete failed", err)
		} else {
			a.vm.Flash.Infof("Conversation deleted")
		}
		a.loadConversations()
	}()
}

// Run starts the TUI and blocks until it exits.
func (a *App) Run() error {
	go func() {
		a.loadStatus()
		a.loadConversations()
	}()
	go a.watchLoop()
	go a.refreshLoop()
	go a.flashLoop()

	return a.app.Run()
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.loadStatus()
			a.loadThread(true)
		case <-a.ctx.Done():
			return
		}
	}
}

// flashLoop redraws the flash bar on new messages and once a second so that
// expired messages disappear.
func (a *App) flashLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.Flash.Changed():
		case <-ticker.C:
		case <-a.ctx.Done():
			return
		}
		msg := a.vm.Flash.Current()
		a.app.QueueUpdateDraw(func() { a.flashBar.Update(msg) })
	}
}

// watchLoop follows daemon events and reconnects after stream errors.
func (a *App) watchLoop() {
	for a.ctx.Err() == nil {
		stream, err := a.client.WatchUpdates(a.ctx, &rpc.WatchRequest{})
		if err == nil {
			for {
				var evt *rpc.Event
				if evt, err = stream.Recv(); err != nil {
					break
				}
				a.handleEvent(evt)
			}
		}
		if a.ctx.Err() != nil {
			return
		}
		a.logger.Debug("watch stream ended, retrying", zap.Error(err))
		select {
		case <-time.After(watchRetry):
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(evt *rpc.Event) {
	switch evt.Kind {
	case bus.KindConversationsChanged:
		a.loadConversations()
	case bus.KindMessagesChanged:
		if evt.ConversationUUID == a.vm.Active() {
			a.loadThread(false)
		}
	case bus.KindSendAck:
		a.vm.Flash.Infof("Message sent")
		if evt.ConversationUUID == a.vm.Active() {
			a.loadThread(false)
		}
	case bus.KindSendFailed:
		var f struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(evt.Payload, &f); err != nil || f.Error == "" {
			f.Error = "unknown error"
		}
		a.vm.Flash.Err("send failed", errors.New(f.Error))
	case bus.KindStatusChanged:
		a.loadStatus()
	}
}

// Stop shuts the TUI down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

func withoutConversation(convs []*rpc.Conversation, id string) []*rpc.Conversation {
	out := make([]*rpc.Conversation, 0, len(convs))
	for _, c := range convs {
		if c.UUID != id {
			out = append(out, c)
		}
	}
	return out
}
