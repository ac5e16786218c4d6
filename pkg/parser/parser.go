// Package parser classifies a framed device reply into a
// *result.Result or a typed result.CommandError, and says which
// command.State the owning command should move to next. Implementations
// satisfy command.Parser structurally (no import back to pkg/command
// needed from the interface's consumers).
//
// Grounded on original_source's backend/commands/parser.py:
// BaseParser, REParser, CommandReplyParser, SuccessParser.
package parser

import (
	"regexp"

	"github.com/labstation/orchestrator/pkg/command"
	"github.com/labstation/orchestrator/pkg/result"
)

// RegexParser matches a reply line against Pattern. A match yields
// Success with capture groups attached to the Result's Parameters,
// provided every entry of ExpectedValues also agrees with the matched
// groups; a non-match, or a captured group that disagrees with (or is
// missing from) ExpectedValues, yields a ResponseError with NextState
// Retry. If ErrorPattern is set and matches instead, the reply is
// classified as a DeviceError with its own capture groups and
// NextState Fail (or Retry, if RetryOnError is set — the source's
// behavior when a device error is recoverable by re-sending, e.g. a
// busy-response).
type RegexParser struct {
	Pattern      *regexp.Regexp
	ErrorPattern *regexp.Regexp
	RetryOnError bool

	// ExpectedValues checks captured group values against a fixed
	// table, e.g. an echoed channel number that must match the one
	// commanded. A reply that matches Pattern's shape but carries a
	// different value (or omits the key) is still a ResponseError.
	ExpectedValues map[string]string
}

// Parse implements command.Parser.
func (p *RegexParser) Parse(reply *result.Result) (any, command.State) {
	if p.ErrorPattern != nil {
		if m := p.ErrorPattern.FindStringSubmatch(reply.Line); m != nil {
			groups := namedGroups(p.ErrorPattern, m)
			next := command.Fail
			if p.RetryOnError {
				next = command.Retry
			}
			return result.NewDeviceError(reply, "device reported an error", groups), next
		}
	}

	m := p.Pattern.FindStringSubmatch(reply.Line)
	if m == nil {
		return result.NewResponseError(reply, "reply did not match expected pattern"), command.Retry
	}
	groups := namedGroups(p.Pattern, m)
	for k, v := range groups {
		reply.Parameters[k] = v
	}
	for key, want := range p.ExpectedValues {
		got, ok := groups[key]
		if !ok {
			return result.NewResponseError(reply, "expected parameter "+key+" is not in the reply"), command.Retry
		}
		if got != want {
			return result.NewResponseError(reply, "parameter "+key+" was "+got+", expected "+want), command.Retry
		}
	}
	return reply, command.Success
}

func namedGroups(re *regexp.Regexp, m []string) map[string]string {
	out := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = m[i]
	}
	return out
}

var _ command.Parser = (*RegexParser)(nil)

// ReplyStateParser consults a reply-line -> outcome table instead of a
// single pattern, for devices whose protocol uses fixed sentinel
// tokens ("OK", "ERR", "BUSY", ...) rather than a parameterized
// pattern. Grounded on CommandReplyParser's reply_to_state dict.
type ReplyStateParser struct {
	// Replies maps an exact reply line to the state it produces.
	// Lines not present in the map are treated as a ResponseError with
	// NextState Retry.
	Replies map[string]command.State
}

// Parse implements command.Parser.
func (p *ReplyStateParser) Parse(reply *result.Result) (any, command.State) {
	next, ok := p.Replies[reply.Line]
	if !ok {
		return result.NewResponseError(reply, "unrecognized reply"), command.Retry
	}
	switch next {
	case command.Success:
		return reply, command.Success
	case command.Fail:
		return result.NewDeviceError(reply, "device reported failure", nil), command.Fail
	case command.Retry:
		return result.NewDeviceError(reply, "device reported a transient failure", nil), command.Retry
	default:
		return reply, next
	}
}

var _ command.Parser = (*ReplyStateParser)(nil)

// SuccessParser always succeeds, for fire-and-forget commands that
// still need a Result-shaped acknowledgement. It only runs when a reply
// line arrives: pkg/device never synthesizes a reply, so a command that
// receives none settles through its timeout path instead.
type SuccessParser struct{}

// Parse implements command.Parser.
func (SuccessParser) Parse(reply *result.Result) (any, command.State) {
	return reply, command.Success
}

var _ command.Parser = SuccessParser{}
