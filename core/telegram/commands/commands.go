// Package commands defines the metadata attached to registered bot commands.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command couples a handler with the menu metadata the registry needs.
// Hidden commands stay out of the Telegram command menu; AdminOnly ones are
// additionally gated by the admin middleware.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}
