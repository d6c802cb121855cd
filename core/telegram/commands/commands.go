// Package commands describes slash commands exposed by a bot.
package commands

import tele "gopkg.in/telebot.v4"

// Command is a slash command and how it is shown.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are gated by the admin check and left out of the menu.
	AdminOnly bool
	Hidden    bool
	// Aliases are reply-keyboard labels that run the same handler.
	Aliases []string
}
