// Package dispatch parses chat commands and runs the reservation workflows
// behind them.
package dispatch

import (
	"strings"

	"cv_builder_bot/internal/domain"
)

// Kind identifies a recognized command.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindStart
	KindQuestion
	KindListQuestions
	KindSendCV
	KindVerify
)

// Issue classifies an argument validation failure inside a recognized command.
type Issue int

const (
	IssueNone Issue = iota
	IssueEmptyQuestion
	IssueSendCVFormat
	IssueBadEmail
	IssueBadTier
	IssueVerifyUsage
)

// Command is the parsed form of one inbound message. A recognized command with
// a non-zero Issue carries the validation failure to surface; its other
// argument fields are unset.
type Command struct {
	Kind  Kind
	Issue Issue

	Text  string      // /question payload
	Email string      // /sendcv, /verify
	Tier  domain.Tier // /sendcv
}

// adminOnly reports whether the command requires an admin caller.
func (c Command) adminOnly() bool {
	return c.Kind == KindListQuestions || c.Kind == KindVerify
}

// grammar lists command prefixes in matching order; the first boundary match
// wins and anything else is unrecognized.
var grammar = []struct {
	prefix string
	parse  func(args string) Command
}{
	{"/start", parseStart},
	{"/question", parseQuestion},
	{"/liste_questions", parseListQuestions},
	{"/sendcv", parseSendCV},
	{"/verify", parseVerify},
}

// Parse classifies one message into a Command. A prefix only matches at a
// token boundary, so "/questionnaire" does not become a question.
func Parse(text string) Command {
	text = strings.TrimSpace(text)

	for _, rule := range grammar {
		args, ok := matchPrefix(text, rule.prefix)
		if !ok {
			continue
		}
		return rule.parse(args)
	}

	return Command{Kind: KindUnrecognized}
}

func matchPrefix(text, prefix string) (string, bool) {
	if !strings.HasPrefix(text, prefix) {
		return "", false
	}

	rest := text[len(prefix):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' && rest[0] != '\n' {
		return "", false
	}

	return strings.TrimSpace(rest), true
}

func parseStart(string) Command {
	return Command{Kind: KindStart}
}

func parseQuestion(args string) Command {
	if args == "" {
		return Command{Kind: KindQuestion, Issue: IssueEmptyQuestion}
	}

	return Command{Kind: KindQuestion, Text: args}
}

func parseListQuestions(string) Command {
	return Command{Kind: KindListQuestions}
}

func parseSendCV(args string) Command {
	segments := strings.Split(args, ",")
	for i, segment := range segments {
		segments[i] = strings.TrimSpace(segment)
	}

	if args == "" || len(segments) != 2 {
		return Command{Kind: KindSendCV, Issue: IssueSendCVFormat}
	}

	email := segments[0]
	if !domain.ValidEmail(email) {
		return Command{Kind: KindSendCV, Issue: IssueBadEmail}
	}

	tier, ok := domain.ParseTier(segments[1])
	if !ok {
		return Command{Kind: KindSendCV, Issue: IssueBadTier}
	}

	return Command{Kind: KindSendCV, Email: email, Tier: tier}
}

func parseVerify(args string) Command {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return Command{Kind: KindVerify, Issue: IssueVerifyUsage}
	}

	return Command{Kind: KindVerify, Email: fields[0]}
}
