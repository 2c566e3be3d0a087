package notify

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
)

func TestEmailNotifierUnconfigured(t *testing.T) {
	e := NewEmailNotifier(SMTPConfig{}, "a@x.com")
	if e.IsConfigured() {
		t.Fatal("empty config must report unconfigured")
	}
	if err := e.Notify(context.Background(), Notification{Title: "t"}); err == nil {
		t.Fatal("unconfigured notifier must refuse to send")
	}
}

func TestEmailNotifierSend(t *testing.T) {
	e := NewEmailNotifier(SMTPConfig{
		Host: "smtp.local", Port: "25", From: "huddle@x.com", FromName: "Huddle",
	}, "a@x.com")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	e.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := e.Notify(context.Background(), Notification{
		Title: "deploy window", Body: "bob: shipping at noon", ThreadID: "th1",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotAddr != "smtp.local:25" || gotFrom != "huddle@x.com" {
		t.Fatalf("addr = %q, from = %q", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "a@x.com" {
		t.Fatalf("to = %v", gotTo)
	}
	text := string(gotMsg)
	if !strings.Contains(text, "Subject: deploy window") {
		t.Fatalf("missing subject in %q", text)
	}
	if !strings.Contains(text, "huddle://thread/th1") {
		t.Fatalf("missing deep link in %q", text)
	}
}

func TestEmailNotifierStripsHeaderBreaks(t *testing.T) {
	e := NewEmailNotifier(SMTPConfig{Host: "h", Port: "25", From: "f@x.com"}, "a@x.com")
	var gotMsg []byte
	e.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotMsg = msg
		return nil
	}

	if err := e.Notify(context.Background(), Notification{Title: "a\r\nBcc: evil"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if strings.Contains(string(gotMsg), "\r\nBcc:") {
		t.Fatal("title newlines must not become headers")
	}
}
