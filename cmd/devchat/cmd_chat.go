package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"devnet/internal/api"
	"devnet/internal/chat"
	"devnet/internal/messenger"
	"devnet/internal/query"
	"devnet/internal/realtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var chatCmd = &cobra.Command{
	Use:   "chat [username]",
	Short: "Open the interactive chat",
	Long: `Open the interactive chat, optionally with a conversation already selected.

Type a line and press Enter to send it. Commands:
  /switch <username>  open another conversation
  /close              close the current conversation
  /users              list the people you can message
  /quit               leave`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	out := cmd.OutOrStdout()

	var id *messenger.Identity
	if cfg.Token != "" && cfg.Username != "" {
		id = &messenger.Identity{Username: cfg.Username}
	}

	c := client()
	cache := query.New[[]chat.Message](logger)
	notices := make(chan string, 16)
	notify := func(msg string) {
		select {
		case notices <- msg:
		default:
		}
	}

	var (
		mgr *realtime.Manager
		tr  *realtime.WSTransport
	)
	if id != nil {
		var err error
		if tr, err = realtime.NewWSTransport(cfg.Server, cfg.Token, logger); err != nil {
			return err
		}
		mgr = realtime.NewManager(tr, logger)
	}

	view := messenger.NewChatView(id, c, cache, mgr, notify, logger)
	if view.State() == messenger.StateUnauthenticated {
		fmt.Fprintln(out, view.Placeholder())
		return nil
	}

	screen := &screen{out: out, view: view}
	cache.OnChange(func(key string) {
		if key == messenger.ChatKey(view.Selected()) {
			screen.render()
		}
	})

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	tr.OnReconnect(func() {
		if err := view.Resync(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("resync after reconnect failed", zap.Error(err))
		}
	})
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := tr.Run(ctx, mgr); err != nil && ctx.Err() == nil {
			logger.Error("realtime transport stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		view.Reconciler().RunResync(ctx, cfg.Resync)
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-notices:
				screen.notice(n)
			}
		}
	}()

	if err := view.Load(ctx); err != nil {
		return fmt.Errorf("load partners: %s", api.Message(err))
	}
	if len(args) == 1 {
		if err := view.Select(ctx, args[0]); err != nil {
			screen.notice(api.Message(err))
		}
	}
	screen.render()

	lines := readLines(ctx, cmd.InOrStdin())
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return view.Deselect(context.WithoutCancel(ctx))
			}
			if quit := handleLine(ctx, view, screen, line); quit {
				return view.Deselect(context.WithoutCancel(ctx))
			}
		}
	}
}

func handleLine(ctx context.Context, view *messenger.ChatView, s *screen, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "/quit":
		return true
	case "/switch":
		if err := view.Select(ctx, strings.TrimSpace(arg)); err != nil {
			s.notice(api.Message(err))
		}
	case "/close":
		if err := view.Deselect(ctx); err != nil {
			s.notice(api.Message(err))
		}
	case "/users":
		if err := view.Load(ctx); err != nil {
			s.notice(api.Message(err))
		}
	default:
		in := view.Input()
		in.Type(line)
		// Errors were already reported through the notifier.
		if err := in.Key(ctx, messenger.KeyEnter); errors.Is(err, messenger.ErrNoSelection) {
			s.notice(messenger.TextNoSelection)
		}
		return false
	}
	s.render()
	return false
}

// readLines feeds stdin lines to the returned channel until EOF.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

type screen struct {
	mu   sync.Mutex
	out  io.Writer
	view *messenger.ChatView
}

func (s *screen) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprint(s.out, "\033[H\033[2J")
	partners := s.view.Partners()
	fmt.Fprintf(s.out, "chats: %s\n", strings.Join(partners, ", "))
	if sel := s.view.Selected(); sel != "" {
		fmt.Fprintf(s.out, "── %s ──\n", sel)
	}
	if p := s.view.Placeholder(); p != "" {
		fmt.Fprintln(s.out, p)
	}
	for _, e := range s.view.Messages() {
		pending := ""
		if strings.HasPrefix(e.ID, messenger.LocalIDPrefix) {
			pending = " …"
		}
		switch e.Direction {
		case messenger.Sent:
			fmt.Fprintf(s.out, "%50s  %s%s\n", e.Message, e.SentAt.Local().Format("15:04"), pending)
		case messenger.Received:
			fmt.Fprintf(s.out, "%s  %s\n", e.SentAt.Local().Format("15:04"), e.Message)
		}
	}
	fmt.Fprint(s.out, "> ")
}

func (s *screen) notice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\n! %s\n> ", msg)
}
