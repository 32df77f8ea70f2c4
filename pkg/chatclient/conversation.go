package chatclient

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"chatsync-be/pkg/apperror"
	"chatsync-be/pkg/realtime"

	"github.com/google/uuid"
)

type SendState int

const (
	SendIdle SendState = iota
	SendSending
	SendFailed
)

func (s SendState) String() string {
	switch s {
	case SendSending:
		return "sending"
	case SendFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Emitter puts a `send` event on the wire. *Channel implements it.
type Emitter interface {
	Send(payload realtime.SendPayload) error
}

// HistoryFetcher reads a chat's full persisted history. *APIClient implements it.
type HistoryFetcher interface {
	History(ctx context.Context, chatId uuid.UUID) ([]Message, error)
}

// ChatView is a snapshot of one chat's state.
type ChatView struct {
	ChatId    uuid.UUID
	Messages  []Message
	Send      SendState
	Input     string
	LastError string
}

type chatState struct {
	messages  []Message
	send      SendState
	input     string
	lastError string

	// clientMessageId of the outstanding send, and its timeout
	pending string
	timer   *time.Timer
}

type ConversationOptions struct {
	// SendTimeout moves a chat from sending to failed when no reply or
	// failure arrives in time. Zero disables it.
	SendTimeout time.Duration

	// OnChange is called after any chat's state changes, outside the lock.
	OnChange func(chatId uuid.UUID)
}

// Conversation holds client state for every chat, keyed by chat id. The
// rendered list of the active chat is just View(Active()); there is no second copy.
type Conversation struct {
	mu      sync.Mutex
	chats   map[uuid.UUID]*chatState
	summary map[uuid.UUID]Chat
	active  uuid.UUID

	emitter Emitter
	history HistoryFetcher
	opts    ConversationOptions

	newClientId func() string
}

func NewConversation(emitter Emitter, history HistoryFetcher, opts ConversationOptions) *Conversation {
	return &Conversation{
		chats:       make(map[uuid.UUID]*chatState),
		summary:     make(map[uuid.UUID]Chat),
		emitter:     emitter,
		history:     history,
		opts:        opts,
		newClientId: uuid.NewString,
	}
}

func (c *Conversation) state(chatId uuid.UUID) *chatState {
	st, ok := c.chats[chatId]
	if !ok {
		st = &chatState{}
		c.chats[chatId] = st
	}
	return st
}

func (c *Conversation) changed(chatId uuid.UUID) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(chatId)
	}
}

// SetChats replaces the known chat list, e.g. after a ListChats call.
func (c *Conversation) SetChats(chats []Chat) {
	c.mu.Lock()
	c.summary = make(map[uuid.UUID]Chat, len(chats))
	for _, chat := range chats {
		c.summary[chat.Id] = chat
	}
	c.mu.Unlock()
}

// AddChat records a newly created chat.
func (c *Conversation) AddChat(chat Chat) {
	c.mu.Lock()
	c.summary[chat.Id] = chat
	c.mu.Unlock()
}

// Chats returns known chats, most recent activity first.
func (c *Conversation) Chats() []Chat {
	c.mu.Lock()
	out := make([]Chat, 0, len(c.summary))
	for _, chat := range c.summary {
		out = append(out, chat)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].Id.String() > out[j].Id.String()
		}
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

func (c *Conversation) Active() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Select makes chatId active after loading its history from the server.
// Confirmed messages come from the fetched history; local messages the
// server has not confirmed yet are kept after them. A send whose reply is
// already in the history is settled as if the reply event had arrived.
func (c *Conversation) Select(ctx context.Context, chatId uuid.UUID) error {
	fetched, err := c.history.History(ctx, chatId)
	if err != nil {
		return err
	}

	c.mu.Lock()
	st := c.state(chatId)
	st.messages = reconcile(fetched, st.messages)
	if answered(fetched, st.pending) {
		st.settle()
	}
	c.active = chatId
	c.mu.Unlock()

	c.changed(chatId)
	return nil
}

// Resync re-reads the active chat's history. Call it after the channel
// reopens, since events missed while it was down are not replayed.
func (c *Conversation) Resync(ctx context.Context) error {
	active := c.Active()
	if active == uuid.Nil {
		return nil
	}
	return c.Select(ctx, active)
}

// answered reports whether history holds the message sent as clientId and an
// assistant message after it.
func answered(history []Message, clientId string) bool {
	if clientId == "" {
		return false
	}
	sentAt := int64(-1)
	for _, m := range history {
		if m.ClientMessageId == clientId {
			sentAt = m.Seq
			break
		}
	}
	if sentAt < 0 {
		return false
	}
	for _, m := range history {
		if m.Role == "assistant" && m.Seq > sentAt {
			return true
		}
	}
	return false
}

func reconcile(fetched, local []Message) []Message {
	confirmedIds := make(map[uuid.UUID]bool, len(fetched))
	confirmedClientIds := make(map[string]bool)
	var maxSeq int64
	for _, m := range fetched {
		confirmedIds[m.Id] = true
		if m.ClientMessageId != "" {
			confirmedClientIds[m.ClientMessageId] = true
		}
		if m.Seq > maxSeq {
			maxSeq = m.Seq
		}
	}

	out := append([]Message(nil), fetched...)
	var tail []Message
	for _, m := range local {
		switch {
		case m.Id != uuid.Nil && confirmedIds[m.Id]:
		case m.ClientMessageId != "" && confirmedClientIds[m.ClientMessageId]:
		case m.Id != uuid.Nil && m.Seq > maxSeq:
			// pushed after the history snapshot was taken
			out = append(out, m)
		case m.Id == uuid.Nil && (m.Pending || m.Failed):
			tail = append(tail, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return append(out, tail...)
}

func (c *Conversation) SetInput(text string) {
	c.mu.Lock()
	if c.active != uuid.Nil {
		c.state(c.active).input = text
	}
	c.mu.Unlock()
}

// Send sends the active chat's input buffer. Empty input, no active chat and
// an outstanding send are rejected before anything changes. If the channel
// refuses the event the chat goes to failed and the input is restored.
func (c *Conversation) Send() error {
	c.mu.Lock()
	chatId := c.active
	if chatId == uuid.Nil {
		c.mu.Unlock()
		return apperror.Validation("no chat selected")
	}
	st := c.state(chatId)
	content := strings.TrimSpace(st.input)
	if content == "" {
		c.mu.Unlock()
		return apperror.Validation("message is empty")
	}
	if st.send == SendSending {
		c.mu.Unlock()
		return apperror.Validation("a message is already being sent in this chat")
	}

	clientId := c.newClientId()
	original := st.input
	st.messages = append(st.messages, Message{
		Role:            "user",
		Content:         content,
		ClientMessageId: clientId,
		CreatedAt:       time.Now(),
		Pending:         true,
	})
	st.input = ""
	st.send = SendSending
	st.lastError = ""
	st.pending = clientId
	if c.opts.SendTimeout > 0 {
		st.timer = time.AfterFunc(c.opts.SendTimeout, func() { c.expire(chatId, clientId) })
	}
	c.mu.Unlock()
	c.changed(chatId)

	err := c.emitter.Send(realtime.SendPayload{ChatId: chatId, Content: content, ClientMessageId: clientId})
	if err == nil {
		return nil
	}

	c.mu.Lock()
	if st.pending == clientId {
		st.stopTimer()
		st.send = SendFailed
		st.lastError = err.Error()
		st.pending = ""
		st.messages = removeByClientId(st.messages, clientId)
		if st.input == "" {
			st.input = original
		}
	}
	c.mu.Unlock()
	c.changed(chatId)
	return err
}

// OnReply records an assistant reply in the chat it names, active or not.
// Replies already seen are ignored.
func (c *Conversation) OnReply(p realtime.ReplyPayload) {
	c.mu.Lock()
	st := c.state(p.ChatId)
	for _, m := range st.messages {
		if m.Id == p.MessageId {
			c.mu.Unlock()
			return
		}
	}

	// the reply goes right after the message it answers, ahead of anything
	// sent since, and after confirmed messages the server ordered before it
	at := len(st.messages)
	if p.ClientMessageId != "" {
		for i := range st.messages {
			if st.messages[i].ClientMessageId == p.ClientMessageId {
				st.messages[i].Pending = false
				st.messages[i].Failed = false
				at = i + 1
			}
		}
	}
	for at < len(st.messages) && st.messages[at].Id != uuid.Nil && st.messages[at].Seq < p.Seq {
		at++
	}
	st.messages = slices.Insert(st.messages, at, Message{
		Id:        p.MessageId,
		Seq:       p.Seq,
		Role:      "assistant",
		Content:   p.Content,
		CreatedAt: time.Now(),
	})

	if st.pending != "" && (p.ClientMessageId == "" || p.ClientMessageId == st.pending) {
		st.settle()
	}
	c.mu.Unlock()
	c.changed(p.ChatId)
}

// OnFailed moves the matching send to failed. Sending is re-enabled.
func (c *Conversation) OnFailed(p realtime.FailedPayload) {
	c.mu.Lock()
	st, ok := c.chats[p.ChatId]
	if !ok || st.pending == "" || (p.ClientMessageId != "" && p.ClientMessageId != st.pending) {
		c.mu.Unlock()
		return
	}
	st.stopTimer()
	markFailed(st.messages, st.pending)
	st.pending = ""
	st.send = SendFailed
	st.lastError = p.Reason
	c.mu.Unlock()
	c.changed(p.ChatId)
}

// OnActivity moves a chat's activity time forward, never backward.
func (c *Conversation) OnActivity(p realtime.ActivityPayload) {
	c.mu.Lock()
	chat, ok := c.summary[p.ChatId]
	if ok && p.LastActivity.After(chat.LastActivity) {
		chat.LastActivity = p.LastActivity
		c.summary[p.ChatId] = chat
	}
	c.mu.Unlock()
}

func (c *Conversation) expire(chatId uuid.UUID, clientId string) {
	c.mu.Lock()
	st := c.state(chatId)
	if st.pending != clientId {
		c.mu.Unlock()
		return
	}
	markFailed(st.messages, clientId)
	st.timer = nil
	st.pending = ""
	st.send = SendFailed
	st.lastError = "no reply received in time"
	c.mu.Unlock()
	c.changed(chatId)
}

func (c *Conversation) View(chatId uuid.UUID) ChatView {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.chats[chatId]
	if !ok {
		return ChatView{ChatId: chatId}
	}
	return ChatView{
		ChatId:    chatId,
		Messages:  append([]Message(nil), st.messages...),
		Send:      st.send,
		Input:     st.input,
		LastError: st.lastError,
	}
}

func (c *Conversation) IsSending(chatId uuid.UUID) bool {
	return c.View(chatId).Send == SendSending
}

func (st *chatState) settle() {
	st.stopTimer()
	st.pending = ""
	st.send = SendIdle
	st.lastError = ""
}

func (st *chatState) stopTimer() {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

func markFailed(messages []Message, clientId string) {
	for i := range messages {
		if messages[i].ClientMessageId == clientId && messages[i].Pending {
			messages[i].Pending = false
			messages[i].Failed = true
		}
	}
}

func removeByClientId(messages []Message, clientId string) []Message {
	out := messages[:0]
	for _, m := range messages {
		if m.ClientMessageId != clientId {
			out = append(out, m)
		}
	}
	return out
}
