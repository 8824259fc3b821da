package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm
}

func TestModel_SubmitCode(t *testing.T) {
	codes := make(chan string, 1)
	m := NewModel(codes, nil)

	m = update(t, m, MsgAuthorizeURL{URL: "http://localhost/auth?client_id=x"})
	m = update(t, m, MsgPromptCode{Prompt: "input code: "})
	if !m.prompting {
		t.Fatal("expected prompt to be active")
	}
	if !strings.Contains(m.viewMain(), "http://localhost/auth?client_id=x") {
		t.Errorf("authorize URL not rendered")
	}

	m.input.SetValue("  the-code  ")
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})

	select {
	case got := <-codes:
		if got != "the-code" {
			t.Errorf("submitted code = %q, want %q", got, "the-code")
		}
	default:
		t.Fatal("no code submitted")
	}
	if m.prompting {
		t.Errorf("prompt still active after submit")
	}
}

func TestModel_EnterWithoutPrompt(t *testing.T) {
	codes := make(chan string, 1)
	m := NewModel(codes, nil)

	update(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	select {
	case got := <-codes:
		t.Errorf("unexpected submission %q", got)
	default:
	}
}

func TestModel_CtrlCInterrupts(t *testing.T) {
	interrupted := false
	m := NewModel(make(chan string, 1), func() { interrupted = true })

	_, cmd := m.Update(tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	if !interrupted {
		t.Errorf("interrupt not called")
	}
	if cmd == nil {
		t.Errorf("expected quit command")
	}
}

func TestModel_States(t *testing.T) {
	m := NewModel(make(chan string, 1), nil)

	m = update(t, m, MsgRefreshing{})
	if m.state != stateRefreshing {
		t.Errorf("state = %v, want refreshing", m.state)
	}

	deadline := time.Now().Add(time.Minute)
	m = update(t, m, MsgWaitingForCode{CallbackURL: "http://localhost:8888/callback", Deadline: deadline})
	if m.state != stateAwaitingCode || !m.deadline.Equal(deadline) {
		t.Errorf("waiting state not applied: %v %v", m.state, m.deadline)
	}

	m = update(t, m, MsgExchanging{})
	if m.state != stateExchanging {
		t.Errorf("state = %v, want exchanging", m.state)
	}

	m = update(t, m, MsgDone{Preview: "abc", TokenType: "Bearer", ExpiresIn: time.Hour})
	if m.state != stateSuccess || !strings.Contains(m.viewSuccess(), "abc...") {
		t.Errorf("success view not rendered")
	}

	m = update(t, m, MsgFatal{Err: errors.New("boom")})
	if m.state != stateError || !strings.Contains(m.viewError(), "boom") {
		t.Errorf("error view not rendered")
	}
}

func TestPlainDisplayer(t *testing.T) {
	var buf bytes.Buffer
	d := NewPlainDisplayer(&buf)

	d.AuthorizeURL("http://localhost/auth")
	d.WaitingForCode("http://localhost:8888/callback", time.Time{})
	d.CodeReceived("callback")
	d.TokenSaved(".accesstoken.json")

	out := buf.String()
	for _, want := range []string{
		"http://localhost/auth",
		"http://localhost:8888/callback",
		"received from callback",
		"Token saved to .accesstoken.json",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "giving up") {
		t.Errorf("unbounded wait should not print a deadline")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{90 * time.Minute, "1h 30m"},
		{time.Hour + 400*time.Millisecond, "1h 0m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModel_StatusLogTruncates(t *testing.T) {
	m := NewModel(make(chan string, 1), nil)
	for range maxStatusLines + 3 {
		m = update(t, m, MsgTokenSaved{Path: "token.json"})
	}
	m = update(t, m, MsgRefreshFailed{Err: errors.New("last")})

	out := m.viewStatusLog()
	if !strings.Contains(out, "(4 earlier)") {
		t.Errorf("missing truncation marker:\n%s", out)
	}
	if !strings.Contains(out, "Refresh failed: last") {
		t.Errorf("latest line dropped:\n%s", out)
	}
	if got := strings.Count(out, "Token saved"); got != maxStatusLines-1 {
		t.Errorf("rendered %d saved lines, want %d", got, maxStatusLines-1)
	}
}
