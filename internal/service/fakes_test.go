package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"chatsync-be/internal/dto"
	"chatsync-be/internal/entity"
	"chatsync-be/internal/repository/contract"
	"chatsync-be/internal/repository/unitofwork"
	"chatsync-be/pkg/events"
	"chatsync-be/pkg/llm"

	"github.com/google/uuid"
)

// memStore backs the fake unit of work. A single mutex stands in for the
// chat row lock; Begin takes it and Commit/Rollback release it.
type memStore struct {
	mu       sync.Mutex
	txLock   sync.Mutex
	chats    map[uuid.UUID]*entity.Chat
	messages map[uuid.UUID][]*entity.Message
	touches  map[uuid.UUID]int
}

func newMemStore() *memStore {
	return &memStore{
		chats:    make(map[uuid.UUID]*entity.Chat),
		messages: make(map[uuid.UUID][]*entity.Message),
		touches:  make(map[uuid.UUID]int),
	}
}

func (s *memStore) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &memUnitOfWork{store: s}
}

func (s *memStore) addChat(userId uuid.UUID, title string) *entity.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat := &entity.Chat{Id: uuid.New(), UserId: userId, Title: title, LastActivity: time.Now().UTC(), CreatedAt: time.Now().UTC()}
	s.chats[chat.Id] = chat
	return chat
}

func (s *memStore) touchCount(chatId uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touches[chatId]
}

func (s *memStore) history(chatId uuid.UUID) []*entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.Message(nil), s.messages[chatId]...)
}

type memUnitOfWork struct {
	store *memStore
	inTx  bool
}

func (u *memUnitOfWork) Begin(ctx context.Context) error {
	if u.inTx {
		return errors.New("transaction already started")
	}
	u.store.txLock.Lock()
	u.inTx = true
	return nil
}

func (u *memUnitOfWork) Commit() error {
	if !u.inTx {
		return errors.New("no transaction to commit")
	}
	u.inTx = false
	u.store.txLock.Unlock()
	return nil
}

func (u *memUnitOfWork) Rollback() error {
	if !u.inTx {
		return nil
	}
	u.inTx = false
	u.store.txLock.Unlock()
	return nil
}

func (u *memUnitOfWork) ChatRepository() contract.ChatRepository {
	return &memChatRepo{store: u.store}
}

func (u *memUnitOfWork) MessageRepository() contract.MessageRepository {
	return &memMessageRepo{store: u.store}
}

type memChatRepo struct{ store *memStore }

func (r *memChatRepo) Create(ctx context.Context, chat *entity.Chat) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *chat
	r.store.chats[chat.Id] = &c
	return nil
}

func (r *memChatRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Chat, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.chats[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r *memChatRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Chat, error) {
	return r.FindByID(ctx, id)
}

func (r *memChatRepo) FindAllByUser(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.Chat, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Chat
	for _, c := range r.store.chats {
		if c.UserId == userId {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].Id.String() > out[j].Id.String()
		}
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memChatRepo) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.chats[id]
	if !ok {
		return false, nil
	}
	r.store.touches[id]++
	if at.After(c.LastActivity) {
		c.LastActivity = at
	}
	return true, nil
}

type memMessageRepo struct{ store *memStore }

func (r *memMessageRepo) Append(ctx context.Context, message *entity.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	list := r.store.messages[message.ChatId]
	message.Seq = int64(len(list)) + 1
	m := *message
	r.store.messages[message.ChatId] = append(list, &m)
	return nil
}

func (r *memMessageRepo) ListByChat(ctx context.Context, chatId uuid.UUID, afterSeq int64, limit int) ([]*entity.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Message
	for _, m := range r.store.messages[chatId] {
		if m.Seq > afterSeq {
			out = append(out, m)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memMessageRepo) ListRecent(ctx context.Context, chatId uuid.UUID, n int) ([]*entity.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	list := r.store.messages[chatId]
	if n > 0 && len(list) > n {
		list = list[len(list)-n:]
	}
	return append([]*entity.Message(nil), list...), nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingEvents) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

type recordingJobs struct {
	mu   sync.Mutex
	jobs []dto.ReplyJob
	err  error
}

func (r *recordingJobs) PublishReplyJob(ctx context.Context, job dto.ReplyJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// frameSink records frames per connection. Connections listed in gone are
// treated as closed.
type frameSink struct {
	mu     sync.Mutex
	frames map[uuid.UUID][][]byte
	users  map[uuid.UUID][][]byte
	gone   map[uuid.UUID]bool
	notify chan struct{}
}

func newFrameSink() *frameSink {
	return &frameSink{
		frames: make(map[uuid.UUID][][]byte),
		users:  make(map[uuid.UUID][][]byte),
		gone:   make(map[uuid.UUID]bool),
		notify: make(chan struct{}, 64),
	}
}

func (s *frameSink) SendToConnection(userId, connId uuid.UUID, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone[connId] {
		return false
	}
	s.frames[connId] = append(s.frames[connId], data)
	s.notify <- struct{}{}
	return true
}

func (s *frameSink) SendToUser(userId uuid.UUID, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userId] = append(s.users[userId], data)
}

func (s *frameSink) forConn(connId uuid.UUID) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames[connId]...)
}

// scriptedResponder answers "hi" to "hello" and echoes anything else. Content
// listed in fail produces an error; content listed in hold waits for its channel
// to close or for ctx to end.
type scriptedResponder struct {
	fail map[string]bool
	hold map[string]chan struct{}

	mu    sync.Mutex
	calls [][]llm.Message
}

func (r *scriptedResponder) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, history)
	r.mu.Unlock()

	last := history[len(history)-1].Content
	if gate, ok := r.hold[last]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if r.fail[last] {
		return "", errors.New("model exploded")
	}
	if last == "hello" {
		return "hi", nil
	}
	return "echo: " + last, nil
}

type logEntry struct {
	level   string
	message string
	details map[string]interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, message string, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, message: message, details: details})
}

func (l *recordingLogger) Debug(module, message string, details map[string]interface{}) {
	l.record("debug", message, details)
}

func (l *recordingLogger) Info(module, message string, details map[string]interface{}) {
	l.record("info", message, details)
}

func (l *recordingLogger) Warn(module, message string, details map[string]interface{}) {
	l.record("warn", message, details)
}

func (l *recordingLogger) Error(module, message string, details map[string]interface{}) {
	l.record("error", message, details)
}

func (l *recordingLogger) Sync() error { return nil }

func (l *recordingLogger) find(level, message string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.message == message {
			return e, true
		}
	}
	return logEntry{}, false
}

// gatedResponder answers once gate closes and ignores cancellation, so it
// keeps its worker slot busy through a shutdown.
type gatedResponder struct {
	gate chan struct{}
}

func (r *gatedResponder) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	<-r.gate
	return "late", nil
}
