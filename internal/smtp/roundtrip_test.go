package smtp_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/infodancer/smtp2tg/internal/config"
	"github.com/infodancer/smtp2tg/internal/notify"
	"github.com/infodancer/smtp2tg/internal/render"
	"github.com/infodancer/smtp2tg/internal/server"
	"github.com/infodancer/smtp2tg/internal/smtp"
)

// telegramCall is one captured request to the fake Bot API.
type telegramCall struct {
	Path      string `json:"-"`
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// envOptions tweaks one round-trip environment.
type envOptions struct {
	dialect      render.Dialect
	maxBodyBytes int
	apiStatus    int    // status the fake Bot API returns (default 200)
	apiBody      string // body the fake Bot API returns (default ok)
}

// testEnv runs the full gateway, listener to notifier, against a fake
// Bot API endpoint that records every request it receives.
type testEnv struct {
	addr string
	api  *httptest.Server

	mu    sync.Mutex
	calls []telegramCall

	apiStatus int
	apiBody   string
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	env := &testEnv{
		apiStatus: opts.apiStatus,
		apiBody:   opts.apiBody,
	}
	if env.apiStatus == 0 {
		env.apiStatus = http.StatusOK
	}
	if env.apiBody == "" {
		env.apiBody = `{"ok":true,"result":{"message_id":1}}`
	}

	env.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := telegramCall{Path: r.URL.Path}
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil && err != io.EOF {
			t.Errorf("decode api request: %v", err)
		}
		env.mu.Lock()
		env.calls = append(env.calls, call)
		env.mu.Unlock()

		w.WriteHeader(env.apiStatus)
		fmt.Fprint(w, env.apiBody)
	}))

	notifier := notify.NewTelegram(env.api.URL, "123:testtoken", "42", 2*time.Second)

	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	if opts.maxBodyBytes > 0 {
		cfg.Limits.MaxBodyBytes = opts.maxBodyBytes
	}

	srv := server.New(&cfg, slog.Default())
	srv.SetHandler(smtp.Handler(smtp.HandlerConfig{
		Hostname:     cfg.Hostname,
		MaxBodyBytes: cfg.Limits.MaxBodyBytes,
		Dialect:      opts.dialect,
		Notifier:     notifier,
	}))

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = srv.Run(ctx)
	}()

	// Wait for the listener to bind.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a := srv.Addr(); a != nil {
			env.addr = a.String()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if env.addr == "" {
		t.Fatal("server did not bind in time")
	}

	t.Cleanup(func() {
		cancel()
		wg.Wait()
		env.api.Close()
	})

	return env
}

// telegramCalls returns a snapshot of the captured API requests.
// The notifier is called before the 250 reply is written, so reading a
// reply guarantees the matching call has been recorded.
func (env *testEnv) telegramCalls() []telegramCall {
	env.mu.Lock()
	defer env.mu.Unlock()
	return append([]telegramCall(nil), env.calls...)
}

// smtpClient is a thin raw-TCP SMTP driver for round-trip tests.
type smtpClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialSMTP(t *testing.T, addr string) *smtpClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &smtpClient{conn: conn, r: bufio.NewReader(conn)}
}

// readResponse reads one SMTP response and returns the numeric code and
// the message text.
func (c *smtpClient) readResponse(t *testing.T) (int, string) {
	t.Helper()
	line, err := c.r.ReadString('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 3 {
		t.Fatalf("response too short: %q", line)
	}
	code, err := strconv.Atoi(line[:3])
	if err != nil {
		t.Fatalf("parse response code from %q: %v", line, err)
	}
	msg := ""
	if len(line) > 4 {
		msg = line[4:]
	}
	return code, msg
}

func (c *smtpClient) send(t *testing.T, line string) {
	t.Helper()
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", line); err != nil {
		t.Fatalf("send %q: %v", line, err)
	}
}

// mustCode sends cmd and asserts the response code. Returns the response text.
// Pass cmd="" to just read a response without sending (e.g. for the greeting).
func (c *smtpClient) mustCode(t *testing.T, cmd string, wantCode int) string {
	t.Helper()
	if cmd != "" {
		c.send(t, cmd)
	}
	code, msg := c.readResponse(t)
	if code != wantCode {
		t.Fatalf("%q → expected %d, got %d (%s)", cmd, wantCode, code, msg)
	}
	return msg
}

func (c *smtpClient) Greeting(t *testing.T) string {
	return c.mustCode(t, "", 220)
}

func (c *smtpClient) Ehlo(t *testing.T) string {
	return c.mustCode(t, "EHLO localhost", 250)
}

func (c *smtpClient) Quit(t *testing.T) {
	c.mustCode(t, "QUIT", 221)
	c.conn.Close()
}

// SendMessage executes a full MAIL FROM / RCPT TO / DATA transaction.
func (c *smtpClient) SendMessage(t *testing.T, from, to, subject, body string) {
	t.Helper()
	c.mustCode(t, fmt.Sprintf("MAIL FROM:<%s>", from), 250)
	c.mustCode(t, fmt.Sprintf("RCPT TO:<%s>", to), 250)
	c.mustCode(t, "DATA", 354)
	msg := "From: " + from + "\r\nTo: " + to + "\r\nSubject: " + subject + "\r\n\r\n" + body
	if _, err := fmt.Fprintf(c.conn, "%s\r\n.\r\n", msg); err != nil {
		t.Fatalf("write DATA body: %v", err)
	}
	code, resp := c.readResponse(t)
	if code != 250 {
		t.Fatalf("DATA end: expected 250, got %d (%s)", code, resp)
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestRoundTrip_Greeting(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	c := dialSMTP(t, env.addr)
	greeting := c.Greeting(t)
	if greeting != "smtp2tg ready" {
		t.Errorf("greeting = %q, want %q", greeting, "smtp2tg ready")
	}
}

func TestRoundTrip_ReplySequence(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	if msg := c.mustCode(t, "EHLO client.example.com", 250); msg != "smtp2tg" {
		t.Errorf("EHLO reply = %q, want hostname", msg)
	}
	c.mustCode(t, "MAIL FROM:<sender@example.com>", 250)
	c.mustCode(t, "RCPT TO:<tg@gateway>", 250)
	c.mustCode(t, "DATA", 354)

	data := "From: sender@example.com\r\nTo: tg@gateway\r\nSubject: Hi\r\n\r\nhello\r\n.\r\n"
	if _, err := fmt.Fprint(c.conn, data); err != nil {
		t.Fatalf("write DATA body: %v", err)
	}
	if msg := c.mustCode(t, "", 250); msg != "Message accepted" {
		t.Errorf("end-of-data reply = %q, want Message accepted", msg)
	}
	c.Quit(t)

	calls := env.telegramCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 API call, got %d", len(calls))
	}
	call := calls[0]
	if call.Path != "/bot123:testtoken/sendMessage" {
		t.Errorf("path = %q, want /bot123:testtoken/sendMessage", call.Path)
	}
	if call.ChatID != "42" {
		t.Errorf("chat_id = %q, want 42", call.ChatID)
	}
	if call.ParseMode != "MarkdownV2" {
		t.Errorf("parse_mode = %q, want MarkdownV2", call.ParseMode)
	}
	if !strings.Contains(call.Text, "📨 *Hi*") {
		t.Errorf("text missing subject, got %q", call.Text)
	}
	if !strings.Contains(call.Text, "hello") {
		t.Errorf("text missing body, got %q", call.Text)
	}
	if !strings.Contains(call.Text, `sender@example\.com`) {
		t.Errorf("text missing escaped From field, got %q", call.Text)
	}
}

func TestRoundTrip_RcptBeforeMail(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	if msg := c.mustCode(t, "RCPT TO:<tg@gateway>", 503); msg != "MAIL first" {
		t.Errorf("reply = %q, want MAIL first", msg)
	}

	// Still rejected after the greeting exchange
	c.Ehlo(t)
	c.mustCode(t, "RCPT TO:<tg@gateway>", 503)
	c.Quit(t)
}

func TestRoundTrip_DataBeforeRcpt(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	c.Ehlo(t)
	if msg := c.mustCode(t, "DATA", 503); msg != "Need MAIL and RCPT" {
		t.Errorf("reply = %q, want Need MAIL and RCPT", msg)
	}
	c.mustCode(t, "MAIL FROM:<sender@example.com>", 250)
	c.mustCode(t, "DATA", 503)
	c.Quit(t)
}

func TestRoundTrip_UnknownCommand(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	c.mustCode(t, "FOO", 502)
	c.Ehlo(t)
	c.mustCode(t, "NOOP", 502)
	c.mustCode(t, "MAIL FROM:<sender@example.com>", 250)
	c.mustCode(t, "BAR baz", 502)

	// Unknown commands leave the transaction state untouched
	c.mustCode(t, "RCPT TO:<tg@gateway>", 250)
	c.Quit(t)
}

func TestRoundTrip_LowercaseCommands(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	c.mustCode(t, "ehlo client.example.com", 250)
	c.mustCode(t, "mail from:<sender@example.com>", 250)
	c.mustCode(t, "rcpt to:<tg@gateway>", 250)
	c.mustCode(t, "data", 354)
	if _, err := fmt.Fprint(c.conn, "Subject: lower\r\n\r\nbody\r\n.\r\n"); err != nil {
		t.Fatalf("write DATA body: %v", err)
	}
	c.mustCode(t, "", 250)
	c.mustCode(t, "quit", 221)
}

func TestRoundTrip_FirstSubjectWins(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	c.Ehlo(t)
	c.mustCode(t, "MAIL FROM:<sender@example.com>", 250)
	c.mustCode(t, "RCPT TO:<tg@gateway>", 250)
	c.mustCode(t, "DATA", 354)

	data := strings.Join([]string{
		"Subject: first",
		"Subject: second",
		"From: a@example.com",
		"To: b@example.com",
		"",
		"body",
		".",
	}, "\r\n") + "\r\n"
	if _, err := fmt.Fprint(c.conn, data); err != nil {
		t.Fatalf("write DATA body: %v", err)
	}
	c.mustCode(t, "", 250)
	c.Quit(t)

	calls := env.telegramCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 API call, got %d", len(calls))
	}
	if !strings.Contains(calls[0].Text, "*first*") {
		t.Errorf("text should use first subject, got %q", calls[0].Text)
	}
	if strings.Contains(calls[0].Text, "second") {
		t.Errorf("duplicate subject leaked into text: %q", calls[0].Text)
	}
}

func TestRoundTrip_HTMLDialect(t *testing.T) {
	env := newTestEnv(t, envOptions{dialect: render.DialectHTML})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	c.Ehlo(t)
	c.SendMessage(t, "sender@example.com", "tg@gateway", "<b>test</b>", "hello")
	c.Quit(t)

	calls := env.telegramCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 API call, got %d", len(calls))
	}
	call := calls[0]
	if call.ParseMode != "HTML" {
		t.Errorf("parse_mode = %q, want HTML", call.ParseMode)
	}
	if !strings.Contains(call.Text, "&lt;b&gt;test&lt;/b&gt;") {
		t.Errorf("subject markup should be escaped, got %q", call.Text)
	}
	if strings.Contains(call.Text, "<b>test</b>") {
		t.Errorf("raw subject markup leaked into text: %q", call.Text)
	}
}

func TestRoundTrip_BodyCap(t *testing.T) {
	env := newTestEnv(t, envOptions{maxBodyBytes: 64})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	c.Ehlo(t)
	body := strings.Repeat("x", 200) + "ENDMARKER"
	c.SendMessage(t, "sender@example.com", "tg@gateway", "Big", body)
	c.Quit(t)

	calls := env.telegramCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 API call, got %d", len(calls))
	}
	if strings.Contains(calls[0].Text, "ENDMARKER") {
		t.Errorf("content past the body cap leaked into text: %q", calls[0].Text)
	}
}

func TestRoundTrip_ApiFailureStillAccepted(t *testing.T) {
	env := newTestEnv(t, envOptions{
		apiStatus: http.StatusInternalServerError,
		apiBody:   `{"ok":false,"description":"boom"}`,
	})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	c.Ehlo(t)

	// SendMessage asserts the 250 even though forwarding fails
	c.SendMessage(t, "sender@example.com", "tg@gateway", "One", "first")

	// The session survives the failure
	c.SendMessage(t, "sender@example.com", "tg@gateway", "Two", "second")
	c.Quit(t)

	if got := len(env.telegramCalls()); got != 2 {
		t.Errorf("expected 2 API attempts, got %d", got)
	}
}

func TestRoundTrip_EmptyFromBounce(t *testing.T) {
	// MAIL FROM:<> is used for bounce messages (DSNs). The gateway must accept it.
	env := newTestEnv(t, envOptions{})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	c.Ehlo(t)
	c.SendMessage(t, "", "tg@gateway", "Bounce", "Delivery status notification.")
	c.Quit(t)

	if got := len(env.telegramCalls()); got != 1 {
		t.Errorf("expected 1 API call, got %d", got)
	}
}

func TestRoundTrip_MultipleMessagesSameSession(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	c.Ehlo(t)
	c.SendMessage(t, "sender@example.com", "tg@gateway", "Message 1", "First.")
	c.SendMessage(t, "sender@example.com", "tg@gateway", "Message 2", "Second.")
	c.SendMessage(t, "sender@example.com", "tg@gateway", "Message 3", "Third.")
	c.Quit(t)

	calls := env.telegramCalls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 API calls, got %d", len(calls))
	}
	for i, want := range []string{"Message 1", "Message 2", "Message 3"} {
		if !strings.Contains(calls[i].Text, want) {
			t.Errorf("call %d text = %q, want subject %q", i, calls[i].Text, want)
		}
	}
}

func TestRoundTrip_QuitBeforeDelivery(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	c := dialSMTP(t, env.addr)

	c.Greeting(t)
	c.Ehlo(t)
	c.Quit(t)

	if got := len(env.telegramCalls()); got != 0 {
		t.Errorf("expected no API calls, got %d", got)
	}
}
