package telegram

import (
	"testing"

	"github.com/m3rciful/coachbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterCommand("/start", commands.Command{Handler: noop, Description: "start", Aliases: []string{"🏠 منوی اصلی"}}); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterCommand("/pending", commands.Command{Handler: noop, Description: "pending", AdminOnly: true}); err != nil {
		t.Fatal(err)
	}

	cases := map[string]string{
		"/start":         "/start",
		"/start payload": "/start",
		"/start@coach":   "/start",
		"🏠 منوی اصلی":    "/start",
		"/pending":       "/pending",
	}
	for text, want := range cases {
		name, _, ok := r.LookupCommand(text)
		if !ok || name != want {
			t.Errorf("lookup %q = %q, %v", text, name, ok)
		}
	}
	if _, _, ok := r.LookupCommand("hello"); ok {
		t.Error("plain text resolved to a command")
	}
	if got := r.ListCommands(true); len(got) != 1 || got[0].Text != "start" {
		t.Errorf("visible commands = %+v", got)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	cmd := commands.Command{Handler: noop, Description: "d", Aliases: []string{"menu"}}
	if err := r.RegisterCommand("/a", cmd); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterCommand("/a", cmd); err == nil {
		t.Error("duplicate command accepted")
	}
	if err := r.RegisterCommand("/b", cmd); err == nil {
		t.Error("duplicate label accepted")
	}
	if err := r.RegisterCommand("nope", commands.Command{Handler: noop, Description: "d"}); err == nil {
		t.Error("command without slash accepted")
	}
	if err := r.RegisterCallback("approve", noop); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterCallback("approve", noop); err == nil {
		t.Error("duplicate callback accepted")
	}
}
