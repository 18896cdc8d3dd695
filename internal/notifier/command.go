package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

const msgPlaceholder = "#MSG#"

// Command runs a shell command template. The quoted message replaces every
// #MSG# in the template, or is appended when the template has none.
type Command struct {
	Template string
	Runner   Runner
	Timeout  time.Duration
}

func NewCommand(template string) *Command {
	return &Command{Template: template, Runner: execRunner{}, Timeout: 10 * time.Second}
}

func (c *Command) Name() string { return "command" }

// MaxAttempts is 1: the command may have acted before it failed.
func (c *Command) MaxAttempts() int { return 1 }

func (c *Command) Send(ctx context.Context, msg Message) error {
	if c.Template == "" {
		return fmt.Errorf("alert command not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	return c.Runner.Run(ctx, nil, "sh", "-c", c.commandLine(msg.Text))
}

func (c *Command) commandLine(text string) string {
	quoted := shellquote.Join(text)
	if strings.Contains(c.Template, msgPlaceholder) {
		return strings.ReplaceAll(c.Template, msgPlaceholder, quoted)
	}
	return c.Template + " " + quoted
}
