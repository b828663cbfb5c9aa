// Package console is the line-based chat surface
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sealor/ollama-chat/pkg/chat"
	"github.com/sealor/ollama-chat/pkg/session"
)

type Console struct {
	Controls *session.Controls
	Input    LineReader
	Output   io.Writer
}

// Run reads lines until EOF or /quit. Lines starting with "/" are commands,
// everything else is sent as a user turn.
func (c *Console) Run(ctx context.Context) error {
	c.replay()
	c.notice("Type /help for commands.")

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := c.Input.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if session.IsCommand(line) {
			res, err := c.Controls.Execute(ctx, line)
			if err != nil {
				fmt.Fprintln(c.Output, errorStyle.Render("Error: "+err.Error()))
				continue
			}
			if res.Output != "" {
				c.notice(res.Output)
			}
			if res.Reset {
				c.replay()
			}
			if res.Quit {
				return nil
			}
			continue
		}

		if err := c.Ask(ctx, line); err != nil {
			fmt.Fprintln(c.Output, errorStyle.Render("Error: "+err.Error()))
		}
	}
}

// Ask runs one turn and prints the reply as it streams in. A failed turn is
// printed in the error style on its own line.
func (c *Console) Ask(ctx context.Context, text string) error {
	s := c.Controls.Session
	turn, err := s.Begin(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprint(c.Output, assistantLabel.Render("Assistant")+": ")

	printed := 0
	for turn.Next() {
		reply := turn.Reply()
		fmt.Fprint(c.Output, reply[printed:])
		printed = len(reply)
	}

	reply, err := s.Finish(turn)
	if turn.Err() != nil {
		if printed > 0 {
			fmt.Fprintln(c.Output)
		}
		fmt.Fprint(c.Output, errorStyle.Render(reply.Content))
	}
	fmt.Fprintln(c.Output)
	return err
}

func (c *Console) replay() {
	for _, m := range c.Controls.Session.Messages() {
		fmt.Fprintln(c.Output, label(m.Role)+": "+m.Content)
	}
}

func (c *Console) notice(text string) {
	fmt.Fprintln(c.Output, noticeStyle.Render(text))
}

func label(role chat.Role) string {
	if role == chat.RoleUser {
		return userLabel.Render("You")
	}
	return assistantLabel.Render("Assistant")
}
