package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

const wireComponent = "tg.wire"

// Registry holds bot commands, their reply-keyboard labels and callbacks.
type Registry struct {
	commands map[string]commands.Command
	labels   map[string]string

	callbacksMu      sync.RWMutex
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		labels:    make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "این گزینه دیگر فعال نیست."})
		},
	}
}

// RegisterCommand adds a slash command. Its Aliases are reply-keyboard labels
// that trigger the same handler.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if !strings.HasPrefix(name, "/") || cmd.Handler == nil || cmd.Description == "" {
		logger.Warn(context.Background(), wireComponent, "register.command",
			slog.String("status", "skip"),
			slog.String("action", name),
			slog.String("reason", "invalid"),
		)
		return fmt.Errorf("invalid command registration: %q", name)
	}
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command already registered: %s", name)
	}
	for _, label := range cmd.Aliases {
		if prev, taken := r.labels[label]; taken {
			return fmt.Errorf("label %q already bound to %s", label, prev)
		}
	}
	r.commands[name] = cmd
	for _, label := range cmd.Aliases {
		r.labels[label] = name
	}
	return nil
}

// ListCommands returns the commands for the Telegram menu, optionally
// without hidden and admin-only ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for name, meta := range r.commands {
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves a slash command or a keyboard label.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	text = strings.TrimSpace(text)
	if name, ok := r.labels[text]; ok {
		return name, r.commands[name], true
	}
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	if !strings.HasPrefix(name, "/") {
		return "", commands.Command{}, false
	}
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// Commands returns all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// RegisterCallback maps a callback unique key to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return fmt.Errorf("invalid callback registration: %q", key)
	}
	r.callbacksMu.Lock()
	defer r.callbacksMu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.callbacksMu.RLock()
	defer r.callbacksMu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the sorted callback keys.
func (r *Registry) ListCallbacks() []string {
	r.callbacksMu.RLock()
	defer r.callbacksMu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetCallbackNotFound replaces the handler for unknown callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

// CallbackNotFound returns the handler for unknown callbacks.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.callbackNotFound
}

// InitBotCommands publishes the visible commands in the Telegram menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
		logger.Error(context.Background(), wireComponent, "register.commands",
			slog.String("status", "error"),
			logger.Err(err),
		)
	}
}
