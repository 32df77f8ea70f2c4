package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chatsync-be/pkg/apperror"
	"chatsync-be/pkg/chatclient"
	"chatsync-be/pkg/realtime"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
)

type sessionOptions struct {
	Server      string
	Token       string
	SendTimeout time.Duration
	HistoryFile string
}

type session struct {
	api  *chatclient.APIClient
	ch   *chatclient.Channel
	conv *chatclient.Conversation
	rl   *readline.Instance
	out  printer
}

func runSession(ctx context.Context, opts sessionOptions) error {
	if opts.Token == "" {
		return errors.New("a token is required, see --token")
	}
	wsURL, err := channelURL(opts.Server)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            promptColor.Sprint("> "),
		HistoryFile:       opts.HistoryFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	s := &session{
		api: chatclient.NewAPIClient(opts.Server, opts.Token),
		rl:  rl,
		out: printer{out: rl.Stdout()},
	}
	s.ch = chatclient.NewChannel(chatclient.ChannelOptions{
		URL:        wsURL,
		Token:      opts.Token,
		OnReply:    s.onReply,
		OnFailed:   s.onFailed,
		OnActivity: s.onActivity,
	})
	s.conv = chatclient.NewConversation(s.ch, s.api, chatclient.ConversationOptions{
		SendTimeout: opts.SendTimeout,
	})

	chats, err := s.api.ListChats(ctx)
	if err != nil {
		return err
	}
	s.conv.SetChats(chats)

	s.out.title("chatctl %s", opts.Server)
	if err := s.ch.Open(ctx); err != nil {
		if apperror.KindOf(err) == apperror.KindAuth {
			return err
		}
		s.out.err(err)
		s.out.notice("retrying in the background")
	}
	defer s.ch.Close()
	go s.watchChannel(ctx)

	s.listChats()
	if len(chats) > 0 {
		s.use(ctx, chats[0].Id)
	} else {
		s.out.notice("no chats yet, create one with /new <title>")
	}

	go func() {
		<-ctx.Done()
		rl.Close()
	}()
	return s.loop(ctx)
}

func (s *session) loop(ctx context.Context) error {
	for {
		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "/") {
			if quit := s.command(ctx, line); quit {
				return nil
			}
			continue
		}

		s.conv.SetInput(line)
		if err := s.conv.Send(); err != nil {
			s.out.err(err)
		}
	}
}

func (s *session) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/chats":
		s.listChats()
	case "/new":
		chat, err := s.api.CreateChat(ctx, arg)
		if err != nil {
			s.out.err(err)
			return false
		}
		s.conv.AddChat(*chat)
		s.use(ctx, chat.Id)
	case "/use":
		id, ok := s.resolve(arg)
		if !ok {
			s.out.notice("no chat matches %q", arg)
			return false
		}
		s.use(ctx, id)
	case "/history":
		s.printHistory(s.conv.Active())
	default:
		s.out.notice("commands: /chats, /new <title>, /use <number|id>, /history, /quit")
	}
	return false
}

func (s *session) listChats() {
	for i, chat := range s.conv.Chats() {
		marker := " "
		if chat.Id == s.conv.Active() {
			marker = "*"
		}
		s.out.notice("%s %d. %s (%s, %s)", marker, i+1, chat.Title, shortId(chat.Id), chat.LastActivity.Local().Format(time.Stamp))
	}
}

// resolve accepts a 1-based position in the chat list or an id prefix.
func (s *session) resolve(arg string) (uuid.UUID, bool) {
	chats := s.conv.Chats()
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(chats) {
		return chats[n-1].Id, true
	}
	if arg == "" {
		return uuid.Nil, false
	}
	for _, chat := range chats {
		if strings.HasPrefix(chat.Id.String(), arg) {
			return chat.Id, true
		}
	}
	return uuid.Nil, false
}

func (s *session) use(ctx context.Context, chatId uuid.UUID) {
	if err := s.conv.Select(ctx, chatId); err != nil {
		s.out.err(err)
		return
	}
	title := s.title(chatId)
	s.rl.SetPrompt(promptColor.Sprintf("[%s] > ", title))
	s.out.title("%s", title)
	s.printHistory(chatId)
}

func (s *session) printHistory(chatId uuid.UUID) {
	view := s.conv.View(chatId)
	for _, m := range view.Messages {
		switch {
		case m.Role == "assistant":
			s.out.reply(m.Content)
		case m.Failed:
			s.out.user(m.Content + "  (not delivered)")
		case m.Pending:
			s.out.user(m.Content + "  (sending)")
		default:
			s.out.user(m.Content)
		}
	}
}

func (s *session) title(chatId uuid.UUID) string {
	for _, chat := range s.conv.Chats() {
		if chat.Id == chatId {
			return chat.Title
		}
	}
	return shortId(chatId)
}

func (s *session) onReply(p realtime.ReplyPayload) {
	s.conv.OnReply(p)
	if p.ChatId == s.conv.Active() {
		s.out.reply(p.Content)
		return
	}
	s.out.notice("[new reply in %q, /use it to read]", s.title(p.ChatId))
}

func (s *session) onFailed(p realtime.FailedPayload) {
	s.conv.OnFailed(p)
	if p.ChatId == s.conv.Active() {
		s.out.err(errors.New(p.Reason))
		return
	}
	s.out.notice("[message in %q failed: %s]", s.title(p.ChatId), p.Reason)
}

func (s *session) onActivity(p realtime.ActivityPayload) {
	s.conv.OnActivity(p)
	if p.ChatId != s.conv.Active() {
		s.out.activity("[activity in %q]", s.title(p.ChatId))
	}
}

// watchChannel reports connection changes and refetches after a reconnect,
// since nothing sent while the channel was down is replayed.
func (s *session) watchChannel(ctx context.Context) {
	states, unsubscribe := s.ch.Subscribe()
	defer unsubscribe()

	dropped := false
	for {
		select {
		case <-ctx.Done():
			return
		case state := <-states:
			switch state {
			case chatclient.StateClosing:
				return
			case chatclient.StateClosed:
				if !dropped {
					dropped = true
					s.out.notice("connection lost, reconnecting")
				}
			case chatclient.StateOpen:
				if !dropped {
					continue
				}
				dropped = false
				s.out.notice("reconnected")
				if chats, err := s.api.ListChats(ctx); err == nil {
					s.conv.SetChats(chats)
				}
				if err := s.conv.Resync(ctx); err != nil {
					s.out.err(err)
				}
			}
		}
	}
}

// channelURL maps http(s)://host to ws(s)://host/api/ws.
func channelURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	return u.String(), nil
}
