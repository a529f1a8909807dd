package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
)

func runSendTest() {
	if err := sendTest(); err != nil {
		fmt.Fprintln(os.Stderr, "send-test:", err)
		os.Exit(1)
	}
}

// sendTest composes a small test message and delivers it to a running
// gateway over plain SMTP. The correlation id in the subject makes the
// resulting notification easy to match against this invocation.
func sendTest() error {
	addr := flag.String("addr", "localhost:2525", "Gateway address to connect to")
	from := flag.String("from", "smtp2tg-test@localhost", "Sender address")
	to := flag.String("to", "gateway@localhost", "Recipient address")
	subject := flag.String("subject", "", "Subject (default includes a correlation id)")
	body := flag.String("body", "Test message from smtp2tg send-test.", "Message body text")
	flag.Parse()

	id := uuid.NewString()
	subj := *subject
	if subj == "" {
		subj = "smtp2tg test " + id[:8]
	}

	msg, err := composeMessage(*from, *to, subj, *body, id)
	if err != nil {
		return err
	}

	c, err := smtp.Dial(*addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", *addr, err)
	}
	defer func() {
		_ = c.Close()
	}()

	if err := c.Hello("localhost"); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}
	if err := c.Mail(*from, nil); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := c.Rcpt(*to, nil); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing message: %w", err)
	}

	if err := c.Quit(); err != nil {
		return fmt.Errorf("QUIT: %w", err)
	}

	fmt.Printf("message %s accepted by %s\n", id, *addr)
	return nil
}

// composeMessage builds an RFC 5322 message with a single inline text part.
func composeMessage(from, to, subject, body, id string) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.Set("Message-Id", "<"+id+"@smtp2tg>")
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)

	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("composing message: %w", err)
	}
	if _, err := io.WriteString(w, body+"\n"); err != nil {
		return nil, fmt.Errorf("writing body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}

	return buf.Bytes(), nil
}
