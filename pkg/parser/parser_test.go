package parser_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/pkg/command"
	"github.com/labstation/orchestrator/pkg/parser"
	"github.com/labstation/orchestrator/pkg/result"
)

func TestRegexParser_MatchWithoutExpectedValues(t *testing.T) {
	p := &parser.RegexParser{Pattern: regexp.MustCompile(`^CH(?P<channel>\d+)=(?P<value>\d+)$`)}
	reply := result.New("CH1=42", time.Unix(0, 0))

	out, state := p.Parse(reply)
	require.Equal(t, command.Success, state)
	require.Equal(t, reply, out)
	require.Equal(t, "1", reply.Parameters["channel"])
}

func TestRegexParser_ExpectedValueMismatchRetries(t *testing.T) {
	p := &parser.RegexParser{
		Pattern:        regexp.MustCompile(`^CH(?P<channel>\d+)=(?P<value>\d+)$`),
		ExpectedValues: map[string]string{"channel": "1"},
	}
	reply := result.New("CH2=42", time.Unix(0, 0))

	out, state := p.Parse(reply)
	require.Equal(t, command.Retry, state)
	err, ok := out.(*result.ResponseError)
	require.True(t, ok)
	require.Equal(t, reply, err.Reply())
}

func TestRegexParser_ExpectedValueMissingRetries(t *testing.T) {
	p := &parser.RegexParser{
		Pattern:        regexp.MustCompile(`^OK$`),
		ExpectedValues: map[string]string{"channel": "1"},
	}
	reply := result.New("OK", time.Unix(0, 0))

	out, state := p.Parse(reply)
	require.Equal(t, command.Retry, state)
	_, ok := out.(*result.ResponseError)
	require.True(t, ok)
}

func TestRegexParser_ExpectedValueMatchSucceeds(t *testing.T) {
	p := &parser.RegexParser{
		Pattern:        regexp.MustCompile(`^CH(?P<channel>\d+)=(?P<value>\d+)$`),
		ExpectedValues: map[string]string{"channel": "1"},
	}
	reply := result.New("CH1=42", time.Unix(0, 0))

	out, state := p.Parse(reply)
	require.Equal(t, command.Success, state)
	require.Equal(t, reply, out)
}

func TestRegexParser_NoPatternMatchRetries(t *testing.T) {
	p := &parser.RegexParser{Pattern: regexp.MustCompile(`^OK$`)}
	reply := result.New("ERR", time.Unix(0, 0))

	_, state := p.Parse(reply)
	require.Equal(t, command.Retry, state)
}
