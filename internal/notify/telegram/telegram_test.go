package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"plannerbot/internal/eventbus"
	"plannerbot/internal/notify"
	"plannerbot/internal/trigger"
	logx "plannerbot/pkg/logx"

	tele "gopkg.in/telebot.v4"
)

func newOffline(t *testing.T, chatID int64) (*Platform, *trigger.Service) {
	t.Helper()
	trig := trigger.New(trigger.Config{}, logx.Nop())
	p, err := New(Config{Token: "123:abc", ChatID: chatID, Offline: true}, trig, eventbus.New(), logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, trig
}

func TestFormatPayloadEscapesHTML(t *testing.T) {
	t.Parallel()
	got := FormatPayload(notify.Payload{
		Title:    "Task Reminder",
		Body:     "Essay <draft> is due in 30 minutes",
		Subtitle: "Check your pending tasks & notes",
	})
	want := "<b>Task Reminder</b>\nEssay &lt;draft&gt; is due in 30 minutes\n<i>Check your pending tasks &amp; notes</i>"
	if got != want {
		t.Fatalf("FormatPayload =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatPayloadTruncates(t *testing.T) {
	t.Parallel()
	got := FormatPayload(notify.Payload{Body: strings.Repeat("a", telegramTextLimit+100)})
	if n := len([]rune(got)); n != telegramTextLimit {
		t.Fatalf("len = %d, want %d", n, telegramTextLimit)
	}
}

func TestFormatPayloadCapsLongHeaders(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", telegramTextLimit+100)
	got := FormatPayload(notify.Payload{Title: long, Body: long, Subtitle: long})
	if !strings.HasPrefix(got, "<b>") || !strings.HasSuffix(got, "</i>") {
		t.Fatalf("headers dropped: %q...", got[:20])
	}
	visible := strings.NewReplacer("<b>", "", "</b>", "", "<i>", "", "</i>", "").Replace(got)
	if n := utf8.RuneCountInString(visible); n > telegramTextLimit {
		t.Fatalf("visible len = %d, want <= %d", n, telegramTextLimit)
	}
	title, _, _ := strings.Cut(visible, "\n")
	if n := utf8.RuneCountInString(title); n != headerLimit {
		t.Fatalf("title len = %d, want %d", n, headerLimit)
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Offline: true}, trigger.New(trigger.Config{}, logx.Nop()), nil, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestPermissionNeedsChat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _ := newOffline(t, 0)
	if ok, err := p.RequestPermission(ctx); ok || err != nil {
		t.Fatalf("RequestPermission without chat = %v, %v", ok, err)
	}
	p.Grant(true)
	if ok, _ := p.PermissionGranted(ctx); ok {
		t.Fatal("Grant must not enable a platform without a chat")
	}
	if _, err := p.Schedule(ctx, notify.Payload{}, time.Now().Add(time.Hour)); !errors.Is(err, notify.ErrPermissionDenied) {
		t.Fatalf("Schedule err = %v, want ErrPermissionDenied", err)
	}
}

func TestScheduleArmsAndCancelDisarms(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, trig := newOffline(t, 42)
	p.Grant(true)

	if _, err := p.Schedule(ctx, notify.Payload{}, time.Now().Add(-time.Second)); !errors.Is(err, notify.ErrPastTrigger) {
		t.Fatalf("past Schedule err = %v, want ErrPastTrigger", err)
	}
	at := time.Now().Add(time.Hour)
	id, err := p.Schedule(ctx, notify.Payload{Title: "x"}, at)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if got, ok := trig.OnceAt(timerName(id)); !ok || !got.Equal(at) {
		t.Fatalf("trigger not armed: %v %v", got, ok)
	}
	if p.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", p.PendingCount())
	}
	if err := p.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, ok := trig.OnceAt(timerName(id)); ok {
		t.Fatal("trigger still armed after Cancel")
	}
	if err := p.Cancel(ctx, "unknown"); err != nil {
		t.Fatalf("Cancel(unknown) = %v", err)
	}
}

func TestSetCommandsSanitizes(t *testing.T) {
	t.Parallel()
	got := sanitizeMenu([]tele.Command{
		{Text: "/Cancel-For", Description: "cancel\nall"},
		{Text: "cancel_for", Description: "duplicate"},
		{Text: "2fa"},
		{Text: "!!!"},
	})
	if len(got) != 2 {
		t.Fatalf("menu = %+v", got)
	}
	if got[0].Text != "cancel_for" || got[0].Description != "cancel all" {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Text != "cmd_2fa" || got[1].Description != "cmd_2fa" {
		t.Fatalf("second = %+v", got[1])
	}

	p, _ := newOffline(t, 1)
	if err := p.SetCommands(got); err != nil {
		t.Fatalf("SetCommands offline: %v", err)
	}
}
