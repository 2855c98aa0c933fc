// Package bot is the Telegram command surface of the reminder service.
//
// Commands are accepted only from the configured reminder chat. Handlers
// work on a transport-free Request so they can be exercised without a bot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"plannerbot/internal/reminder"
	"plannerbot/internal/timetable"
	logx "plannerbot/pkg/logx"
	"plannerbot/pkg/tgui"

	tele "gopkg.in/telebot.v4"
)

// Reminders is the part of reminder.Service the commands drive.
type Reminders interface {
	ScheduleTaskReminder(ctx context.Context, r reminder.TaskReminder) (string, error)
	ScheduleSessionReminder(ctx context.Context, r reminder.SessionReminder) (string, error)
	ScheduleCustomReminder(ctx context.Context, r reminder.CustomReminder) (string, error)
	Cancel(ctx context.Context, id string) error
	CancelFor(ctx context.Context, subjectRefID string) error
	Reschedule(ctx context.Context, id string, basis time.Time) (string, error)
	List(ctx context.Context) ([]reminder.Reminder, error)
	ListFor(ctx context.Context, subjectRefID string) ([]reminder.Reminder, error)
	CountActive(ctx context.Context) (int, error)
	RequestPermission(ctx context.Context) (bool, error)
	Settings(ctx context.Context) (reminder.Settings, error)
	UpdateSettings(ctx context.Context, p reminder.SettingsPatch) (reminder.Settings, error)
}

// Host is the Telegram side: the bot that receives commands and the
// permission switch of the chat it notifies.
type Host interface {
	Handle(endpoint string, h tele.HandlerFunc)
	SetCommands(cmds []tele.Command) error
	ChatID() int64
	Grant(granted bool)
}

type usageError string

func (e usageError) Error() string { return "usage: " + string(e) }

type command struct {
	name  string
	usage string
	desc  string
	run   HandlerFunc
}

type Commands struct {
	svc     Reminders
	grant   func(bool)
	loc     func() *time.Location
	now     func() time.Time
	log     logx.Logger
	timeout time.Duration
}

type Option func(*Commands)

// WithLocation sets the timezone used to read wall-clock times.
func WithLocation(loc func() *time.Location) Option { return func(c *Commands) { c.loc = loc } }

func WithClock(now func() time.Time) Option { return func(c *Commands) { c.now = now } }

// WithTimeout bounds each command. 0 disables the bound.
func WithTimeout(d time.Duration) Option { return func(c *Commands) { c.timeout = d } }

func New(svc Reminders, log logx.Logger, opts ...Option) *Commands {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Commands{
		svc:     svc,
		grant:   func(bool) {},
		loc:     func() *time.Location { return time.Local },
		now:     time.Now,
		log:     log,
		timeout: 15 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Commands) table() []command {
	return []command{
		{name: "start", desc: "allow reminders in this chat", run: c.start},
		{name: "stop", desc: "block new reminders", run: c.stop},
		{name: "task", usage: "/task <task-id> <due> [lead] <title...>", desc: "remind before a task is due", run: c.task},
		{name: "session", usage: "/session <session-id> <day> <HH:MM> [lead] <title...>", desc: "remind before a weekly session", run: c.session},
		{name: "remind", usage: "/remind <when> <title> [body]", desc: "one-off reminder", run: c.remind},
		{name: "reminders", usage: "/reminders [subject-id|*] [page]", desc: "list reminders", run: c.list},
		{name: "count", desc: "count upcoming reminders", run: c.count},
		{name: "cancel", usage: "/cancel <id>", desc: "cancel a reminder", run: c.cancel},
		{name: "cancelfor", usage: "/cancelfor <subject-id>", desc: "cancel all reminders for a task or session", run: c.cancelFor},
		{name: "reschedule", usage: "/reschedule <id> <when>", desc: "move a reminder", run: c.reschedule},
		{name: "settings", usage: "/settings [name=on|off ...]", desc: "show or change notification settings", run: c.settings},
		{name: "help", desc: "show commands", run: c.help},
	}
}

// Register installs the handlers on h and publishes the command menu.
// Handlers run with ctx as their parent.
func (c *Commands) Register(ctx context.Context, h Host) error {
	c.grant = h.Grant
	menu := make([]tele.Command, 0, 12)
	for _, cmd := range c.table() {
		run := Chain(cmd.run, MWPanicRecover(c.log), MWRequestLog(c.log), MWTimeout(c.timeout))
		h.Handle("/"+cmd.name, c.adapt(ctx, h.ChatID, cmd.name, run))
		menu = append(menu, tele.Command{Text: cmd.name, Description: cmd.desc})
	}
	return h.SetCommands(menu)
}

func (c *Commands) adapt(ctx context.Context, chatID func() int64, name string, run HandlerFunc) tele.HandlerFunc {
	return func(tc tele.Context) error {
		chat := tc.Chat()
		if chat == nil {
			return nil
		}
		if chat.ID != chatID() {
			c.log.Info("command from unconfigured chat ignored", logx.String("cmd", name), logx.Int64("chat_id", chat.ID))
			return nil
		}
		req := &Request{
			ChatID:  chat.ID,
			Command: name,
			Logger:  c.log,
			reply:   func(text string) error { return tc.Send(text) },
		}
		if m := tc.Message(); m != nil {
			req.Args = Tokenize(m.Payload)
		}
		if s := tc.Sender(); s != nil {
			req.FromID = s.ID
		}
		return c.Dispatch(ctx, req, run)
	}
}

// Dispatch runs h and turns its error into a reply.
func (c *Commands) Dispatch(ctx context.Context, req *Request, h HandlerFunc) error {
	if err := h(ctx, req); err != nil {
		return req.Reply(describeErr(err))
	}
	return nil
}

// Run dispatches a command by name, as Register's handlers do.
func (c *Commands) Run(ctx context.Context, req *Request) error {
	for _, cmd := range c.table() {
		if cmd.name == req.Command {
			return c.Dispatch(ctx, req, cmd.run)
		}
	}
	return req.Reply(fmt.Sprintf("Unknown command /%s. Try /help.", req.Command))
}

func describeErr(err error) string {
	var u usageError
	switch {
	case errors.As(err, &u):
		return "Usage: " + string(u)
	case errors.Is(err, reminder.ErrPermissionDenied):
		return "Notifications are not enabled for this chat. Send /start first."
	case errors.Is(err, reminder.ErrPastTrigger):
		return "That reminder would fire in the past."
	case errors.Is(err, reminder.ErrNotFound):
		return "No reminder with that id."
	case errors.Is(err, reminder.ErrDisabled):
		return "This kind of reminder is switched off. See /settings."
	case errors.Is(err, reminder.ErrInvalidLead):
		return "Lead time must be zero or more minutes."
	default:
		return "Failed: " + err.Error()
	}
}

func (c *Commands) start(ctx context.Context, req *Request) error {
	c.grant(true)
	ok, err := c.svc.RequestPermission(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return req.Reply("This chat cannot receive reminders. Check telegram.chat_id.")
	}
	return req.Reply("Reminders are enabled for this chat. Send /help for commands.")
}

func (c *Commands) stop(ctx context.Context, req *Request) error {
	c.grant(false)
	return req.Reply("New reminders are blocked. Already scheduled ones still fire; /start to allow again.")
}

func (c *Commands) task(ctx context.Context, req *Request) error {
	const usage = usageError("/task <task-id> <due> [lead] <title...>")
	if len(req.Args) < 3 {
		return usage
	}
	due, err := ParseWhen(req.Args[1], c.now(), c.loc())
	if err != nil {
		return err
	}
	lead, rest, err := leadAndTitle(req.Args[2:])
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return usage
	}
	id, err := c.svc.ScheduleTaskReminder(ctx, reminder.TaskReminder{
		TaskID:      req.Args[0],
		Title:       strings.Join(rest, " "),
		DueDate:     due,
		LeadMinutes: lead,
	})
	if err != nil {
		return err
	}
	return req.Reply(fmt.Sprintf("Task reminder %s set for %s.", id, c.format(due)))
}

func (c *Commands) session(ctx context.Context, req *Request) error {
	const usage = usageError("/session <session-id> <day> <HH:MM> [lead] <title...>")
	if len(req.Args) < 4 {
		return usage
	}
	day, err := timetable.ParseDay(req.Args[1])
	if err != nil {
		return err
	}
	at, err := timetable.ParseClock(req.Args[2])
	if err != nil {
		return err
	}
	lead, rest, err := leadAndTitle(req.Args[3:])
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return usage
	}
	start := timetable.NextOccurrence(day, at, c.now(), c.loc())
	id, err := c.svc.ScheduleSessionReminder(ctx, reminder.SessionReminder{
		SessionID:   req.Args[0],
		Title:       strings.Join(rest, " "),
		Start:       start,
		LeadMinutes: lead,
	})
	if err != nil {
		return err
	}
	return req.Reply(fmt.Sprintf("Session reminder %s set for %s (%s %s).", id, c.format(start), day, at.Format12h()))
}

func leadAndTitle(args []string) (int, []string, error) {
	lead, ok, err := parseLead(args[0])
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return reminder.UseDefaultLead, args, nil
	}
	return lead, args[1:], nil
}

func (c *Commands) remind(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		return usageError("/remind <when> <title> [body]")
	}
	at, err := ParseWhen(req.Args[0], c.now(), c.loc())
	if err != nil {
		return err
	}
	r := reminder.CustomReminder{Title: req.Args[1], TriggerTime: at}
	if len(req.Args) > 2 {
		r.Body = strings.Join(req.Args[2:], " ")
	}
	id, err := c.svc.ScheduleCustomReminder(ctx, r)
	if err != nil {
		return err
	}
	return req.Reply(fmt.Sprintf("Reminder %s set for %s.", id, c.format(at)))
}

const listPageSize = 10

func (c *Commands) list(ctx context.Context, req *Request) error {
	// /reminders [subject-id|*] [page]
	subject, page := "", 0
	if len(req.Args) > 0 && req.Args[0] != "*" {
		subject = req.Args[0]
	}
	if len(req.Args) > 1 {
		p, err := strconv.Atoi(req.Args[1])
		if err != nil || p < 1 {
			return usageError("/reminders [subject-id|*] [page]")
		}
		page = p - 1
	}
	var (
		list []reminder.Reminder
		err  error
	)
	if subject != "" {
		list, err = c.svc.ListFor(ctx, subject)
	} else {
		list, err = c.svc.List(ctx)
	}
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return req.Reply("No reminders.")
	}
	items, page, more := tgui.Page(list, page, listPageSize)
	var b strings.Builder
	for _, r := range items {
		fmt.Fprintf(&b, "%s  %s  %s", c.format(r.TriggerTime), r.Kind, tgui.TruncRunes(r.Title, 60))
		if r.SubjectRefID != "" {
			fmt.Fprintf(&b, " [%s]", r.SubjectRefID)
		}
		fmt.Fprintf(&b, "\n  id %s\n", r.ID)
	}
	b.WriteString(tgui.PageLabel(page, listPageSize, len(list)))
	if more {
		if subject == "" {
			subject = "*"
		}
		fmt.Fprintf(&b, "\nNext: /reminders %s %d", subject, page+2)
	}
	return req.Reply(b.String())
}

func (c *Commands) count(ctx context.Context, req *Request) error {
	n, err := c.svc.CountActive(ctx)
	if err != nil {
		return err
	}
	return req.Reply(fmt.Sprintf("%d upcoming reminder(s).", n))
}

func (c *Commands) cancel(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return usageError("/cancel <id>")
	}
	if err := c.svc.Cancel(ctx, req.Args[0]); err != nil {
		return err
	}
	return req.Reply("Cancelled.")
}

func (c *Commands) cancelFor(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return usageError("/cancelfor <subject-id>")
	}
	if err := c.svc.CancelFor(ctx, req.Args[0]); err != nil {
		return err
	}
	return req.Reply(fmt.Sprintf("Reminders for %s cancelled.", req.Args[0]))
}

func (c *Commands) reschedule(ctx context.Context, req *Request) error {
	if len(req.Args) != 2 {
		return usageError("/reschedule <id> <when>")
	}
	at, err := ParseWhen(req.Args[1], c.now(), c.loc())
	if err != nil {
		return err
	}
	id, err := c.svc.Reschedule(ctx, req.Args[0], at)
	if err != nil {
		return err
	}
	return req.Reply(fmt.Sprintf("Rescheduled as %s.", id))
}

func (c *Commands) settings(ctx context.Context, req *Request) error {
	var (
		st  reminder.Settings
		err error
	)
	if len(req.Args) == 0 {
		st, err = c.svc.Settings(ctx)
	} else {
		var p reminder.SettingsPatch
		if p, err = ParseSettingsPatch(req.Args); err != nil {
			return err
		}
		st, err = c.svc.UpdateSettings(ctx, p)
	}
	if err != nil {
		return err
	}
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	return req.Reply(fmt.Sprintf("enabled=%s task=%s schedule=%s custom=%s sound=%s badge=%s",
		onOff(st.Enabled), onOff(st.TaskReminders), onOff(st.ScheduleReminders),
		onOff(st.CustomReminders), onOff(st.SoundEnabled), onOff(st.BadgeEnabled)))
}

func (c *Commands) help(ctx context.Context, req *Request) error {
	var b strings.Builder
	for _, cmd := range c.table() {
		u := cmd.usage
		if u == "" {
			u = "/" + cmd.name
		}
		fmt.Fprintf(&b, "%s - %s\n", u, cmd.desc)
	}
	b.WriteString("Times: +30m, 14:30, 2025-06-10 09:00 or RFC 3339.")
	return req.Reply(b.String())
}

func (c *Commands) format(t time.Time) string {
	return t.In(c.loc()).Format("Mon 2 Jan 15:04")
}
