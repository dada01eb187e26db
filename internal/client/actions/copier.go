package actions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Role attribute values marking transcript messages.
const (
	roleAttr      = "data-message-role"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// contextLimit bounds the context excerpt, in runes.
const contextLimit = 280

// Message is one transcript entry.
type Message struct {
	Role string
	Text string
}

// Transcript yields the rendered conversation markup.
type Transcript interface {
	HTML(ctx context.Context) (string, error)
}

// Clipboard accepts text writes. Implementations may reject them.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// Copier copies parts of the transcript to the clipboard.
type Copier struct {
	transcript Transcript
	clipboard  Clipboard
	notify     Notifier
	log        *zap.Logger
}

// NewCopier constructs a Copier.
func NewCopier(t Transcript, c Clipboard, n Notifier, log *zap.Logger) *Copier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Copier{transcript: t, clipboard: c, notify: n, log: log}
}

// Copy extracts the scope from the transcript, writes it to the clipboard and
// shows the outcome. The clipboard is not touched when nothing matches.
func (c *Copier) Copy(ctx context.Context, scope Scope) Notice {
	n := c.copy(ctx, scope)
	if c.notify != nil {
		c.notify.Notify(n)
	}
	return n
}

func (c *Copier) copy(ctx context.Context, scope Scope) Notice {
	markup, err := c.transcript.HTML(ctx)
	if err != nil {
		c.log.Warn("read transcript", zap.Error(err))
		return Notice{Level: LevelError, Text: TextFailed}
	}
	msgs, err := ExtractMessages(markup)
	if err != nil {
		c.log.Warn("parse transcript", zap.Error(err))
		return Notice{Level: LevelError, Text: TextFailed}
	}
	text, ok := Format(msgs, scope)
	if !ok {
		return Notice{Level: LevelWarning, Text: TextNoMessage}
	}
	if err := c.clipboard.WriteText(ctx, text); err != nil {
		c.log.Warn("clipboard write rejected", zap.Error(err))
		return Notice{Level: LevelError, Text: TextFailed}
	}
	return Notice{Level: LevelSuccess, Text: TextCopied}
}

// ExtractMessages returns the outermost elements carrying a user or assistant
// role, in document order, with their visible text.
func ExtractMessages(markup string) ([]Message, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var out []Message
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if role := attr(n, roleAttr); role == RoleUser || role == RoleAssistant {
				if text := visibleText(n); text != "" {
					out = append(out, Message{Role: role, Text: text})
				}
				return
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return out, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"pre": true, "blockquote": true, "article": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// visibleText flattens n to lines: block elements break lines, runs of
// whitespace collapse, blank lines drop.
func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	walk(n)

	var lines []string
	for _, l := range strings.Split(b.String(), "\n") {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

// Format renders msgs for scope. It reports false when there is no user message.
func Format(msgs []Message, scope Scope) (string, bool) {
	last := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			last = i
			break
		}
	}
	if last < 0 {
		return "", false
	}
	user := msgs[last].Text

	switch scope {
	case ScopeWithContext:
		prev := ""
		for i := last - 1; i >= 0; i-- {
			if msgs[i].Role == RoleAssistant {
				prev = msgs[i].Text
				break
			}
		}
		if prev == "" {
			return user, true
		}
		return user + "\n\nContext (previous reply):\n" + truncate(prev, contextLimit), true
	case ScopeExchange, ScopeExchangeMarkdown:
		reply := ""
		for i := last + 1; i < len(msgs); i++ {
			if msgs[i].Role == RoleAssistant {
				reply = msgs[i].Text
				break
			}
		}
		if scope == ScopeExchangeMarkdown {
			s := "**You:**\n\n" + quote(user)
			if reply != "" {
				s += "\n\n**Assistant:**\n\n" + reply
			}
			return s, true
		}
		s := "You: " + user
		if reply != "" {
			s += "\n\nAssistant: " + reply
		}
		return s, true
	default:
		return user, true
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

func quote(s string) string {
	return "> " + strings.ReplaceAll(s, "\n", "\n> ")
}
