package smtp

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrUnknownCommand is returned when no registered command matches the input line.
var ErrUnknownCommand = errors.New("unknown command")

// SessionState represents the current state of an SMTP session.
// States are ordered so sequencing checks can compare them.
type SessionState int

const (
	StateInit          SessionState = iota // Initial state, before any greeting
	StateGreeted                           // After HELO/EHLO
	StateHasSender                         // After MAIL FROM
	StateHasRecipient                      // After RCPT TO
	StateReceivingData                     // In DATA mode, receiving message content
	StateDone                              // Message accepted, awaiting the next transaction or QUIT
)

// String returns a human-readable representation of the session state
func (s SessionState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateGreeted:
		return "GREETED"
	case StateHasSender:
		return "HAS_SENDER"
	case StateHasRecipient:
		return "HAS_RECIPIENT"
	case StateReceivingData:
		return "RECEIVING_DATA"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Command interface defines the contract for SMTP commands using regexp patterns
type Command interface {
	// Pattern returns the compiled regexp for matching this command
	Pattern() *regexp.Regexp

	// Execute processes the command. matches[0] is full line, matches[1:] are capture groups
	Execute(ctx context.Context, session *Session, matches []string) (Result, error)
}

// Result represents the response to one SMTP command
type Result struct {
	Code    int
	Message string
}

// Registry holds registered commands and matches input against them
type Registry struct {
	commands []Command
}

// NewRegistry creates a new command registry with the gateway's supported commands.
// hostname is echoed in greeting acknowledgements.
func NewRegistry(hostname string) *Registry {
	return &Registry{
		commands: []Command{
			&EHLOCommand{hostname: hostname},
			&HELOCommand{hostname: hostname},
			&MAILCommand{},
			&RCPTCommand{},
			&DATACommand{},
			&QUITCommand{},
		},
	}
}

// Match finds the command that matches the input line and returns it with captured groups
func (r *Registry) Match(line string) (Command, []string, error) {
	for _, cmd := range r.commands {
		if matches := cmd.Pattern().FindStringSubmatch(line); matches != nil {
			return cmd, matches, nil
		}
	}
	return nil, nil, ErrUnknownCommand
}

// Pre-compiled regexp patterns for SMTP commands. Verbs match
// case-insensitively; EHLO/HELO/MAIL/RCPT are prefix matches, the
// leniency real mail clients rely on.
var (
	ehloPattern = regexp.MustCompile(`(?i)^EHLO`)
	heloPattern = regexp.MustCompile(`(?i)^HELO`)
	mailPattern = regexp.MustCompile(`(?i)^MAIL FROM:(.*)$`)
	rcptPattern = regexp.MustCompile(`(?i)^RCPT TO:(.*)$`)
	dataPattern = regexp.MustCompile(`(?i)^DATA$`)
	quitPattern = regexp.MustCompile(`(?i)^QUIT$`)
)

// EHLOCommand implements the EHLO command
type EHLOCommand struct {
	hostname string
}

func (c *EHLOCommand) Pattern() *regexp.Regexp {
	return ehloPattern
}

func (c *EHLOCommand) Execute(ctx context.Context, session *Session, matches []string) (Result, error) {
	if session.State() == StateInit {
		session.SetState(StateGreeted)
	}
	return Result{Code: 250, Message: c.hostname}, nil
}

// HELOCommand implements the HELO command
type HELOCommand struct {
	hostname string
}

func (c *HELOCommand) Pattern() *regexp.Regexp {
	return heloPattern
}

func (c *HELOCommand) Execute(ctx context.Context, session *Session, matches []string) (Result, error) {
	if session.State() == StateInit {
		session.SetState(StateGreeted)
	}
	return Result{Code: 250, Message: c.hostname}, nil
}

// MAILCommand implements the MAIL command. It is legal in every state and
// always starts a fresh transaction.
type MAILCommand struct{}

func (c *MAILCommand) Pattern() *regexp.Regexp {
	return mailPattern
}

func (c *MAILCommand) Execute(ctx context.Context, session *Session, matches []string) (Result, error) {
	session.SetSender(trimAddress(matches[1]))
	session.SetState(StateHasSender)
	return Result{Code: 250, Message: "OK"}, nil
}

// RCPTCommand implements the RCPT command
type RCPTCommand struct{}

func (c *RCPTCommand) Pattern() *regexp.Regexp {
	return rcptPattern
}

func (c *RCPTCommand) Execute(ctx context.Context, session *Session, matches []string) (Result, error) {
	// Check state - must have MAIL FROM first
	if session.State() < StateHasSender {
		return Result{Code: 503, Message: "MAIL first"}, nil
	}

	session.SetRecipient(trimAddress(matches[1]))
	session.SetState(StateHasRecipient)
	return Result{Code: 250, Message: "OK"}, nil
}

// DATACommand implements the DATA command
type DATACommand struct{}

func (c *DATACommand) Pattern() *regexp.Regexp {
	return dataPattern
}

func (c *DATACommand) Execute(ctx context.Context, session *Session, matches []string) (Result, error) {
	// Check state - must have both a sender and a recipient
	if session.State() < StateHasRecipient {
		return Result{Code: 503, Message: "Need MAIL and RCPT"}, nil
	}

	session.BeginData()
	return Result{Code: 354, Message: "End with <CR><LF>.<CR><LF>"}, nil
}

// QUITCommand implements the QUIT command
type QUITCommand struct{}

func (c *QUITCommand) Pattern() *regexp.Regexp {
	return quitPattern
}

func (c *QUITCommand) Execute(ctx context.Context, session *Session, matches []string) (Result, error) {
	return Result{Code: 221, Message: "Bye"}, nil
}

// trimAddress strips surrounding whitespace and angle brackets from an
// envelope address argument.
func trimAddress(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return s
}
