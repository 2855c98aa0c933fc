package telegram

import (
	"hash/fnv"
	"strings"
	"unicode"

	logx "plannerbot/pkg/logx"

	tele "gopkg.in/telebot.v4"
)

// menuCommand converts a command name into Telegram's [a-z0-9_]{1,32} form.
func menuCommand(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "/")
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == '-' || r == '/' || unicode.IsSpace(r):
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	return out
}

// sanitizeMenu normalizes names and descriptions, drops duplicates and
// caps the list at Telegram's 100 entries.
func sanitizeMenu(cmds []tele.Command) []tele.Command {
	seen := make(map[string]bool, len(cmds))
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		name := menuCommand(c.Text)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		desc := strings.ReplaceAll(strings.TrimSpace(c.Description), "\n", " ")
		if desc == "" {
			desc = name
		}
		if len(desc) > 256 {
			desc = desc[:256]
		}
		out = append(out, tele.Command{Text: name, Description: desc})
		if len(out) == 100 {
			break
		}
	}
	return out
}

func menuHash(cmds []tele.Command) uint64 {
	h := fnv.New64a()
	for _, c := range cmds {
		h.Write([]byte(c.Text))
		h.Write([]byte{0})
		h.Write([]byte(c.Description))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// SetCommands publishes the bot's command menu (setMyCommands). It only
// calls Telegram when the list changed since the last call.
func (p *Platform) SetCommands(cmds []tele.Command) error {
	cmds = sanitizeMenu(cmds)
	sum := menuHash(cmds)

	p.menuMu.Lock()
	defer p.menuMu.Unlock()
	if sum == p.menuHash {
		return nil
	}
	if !p.cfg.Offline {
		if err := p.bot.SetCommands(cmds); err != nil {
			return err
		}
	}
	p.menuHash = sum
	p.log.Debug("command menu updated", logx.Int("commands", len(cmds)))
	return nil
}
