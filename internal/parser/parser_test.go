package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Jobsh/internal/command"
)

// dump renders every node of list on its own line, followed by the
// canonical form of the whole line.
func dump(list *command.List) []byte {

	op := func(o command.Operator) string {
		if o == command.OpNone {
			return "none"
		}
		return o.String()
	}

	var b strings.Builder
	for i, n := range list.Nodes {
		if n.IsRedirect() {
			fmt.Fprintf(&b, "%d redirect %s %q prev=%s next=%s\n", i, n.Redirect, n.Target, op(n.Prev), op(n.Next))
		} else {
			fmt.Fprintf(&b, "%d exec %q prev=%s next=%s\n", i, n.Args, op(n.Prev), op(n.Next))
		}
	}
	b.WriteString(list.String())
	b.WriteByte('\n')

	return []byte(b.String())

}

func TestParseGolden(t *testing.T) {

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
	)

	tests := map[string]string{
		"pipeline":          "ls -l | grep go | wc -l",
		"redirects":         "sort < in.txt > out.txt 2> err.txt",
		"conditional":       "make && echo ok || echo failed ; echo done",
		"background":        "sleep 1 & ; echo done",
		"quoted":            `echo "a | b" 'c;d' e\&f > "my file"`,
		"args_after_target": "echo a > out.txt b",
	}

	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			list, err := Parse(line)
			require.NoError(t, err)
			g.Assert(t, name, dump(list))
		})
	}

}

func TestParseBlankLine(t *testing.T) {

	for _, line := range []string{"", "   ", "\t"} {
		list, err := Parse(line)
		require.NoError(t, err)
		assert.Equal(t, 0, list.Len())
	}

}

func TestParseProducesWellFormedLists(t *testing.T) {

	lines := []string{
		"echo hi",
		"echo hi | cat",
		"false && echo no",
		"true || echo no",
		"echo hi > out.txt",
		"cat < in.txt | sort 2> err.txt > out.txt",
		"a & b & c",
		"a ; b ;",
		"x2>y",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			list, err := Parse(line)
			require.NoError(t, err)
			_, err = list.Jobs()
			assert.NoError(t, err)
		})
	}

}

func TestParseTwoDigitsBeforeRedirectStayInWord(t *testing.T) {

	list, err := Parse("echo x2>y")
	require.NoError(t, err)
	require.Equal(t, 2, list.Len())
	assert.Equal(t, []string{"echo", "x2"}, list.Nodes[0].Args)
	assert.Equal(t, command.StdoutToFile, list.Nodes[1].Redirect)
	assert.Equal(t, "y", list.Nodes[1].Target)

}

func TestParseBackgroundThenSequence(t *testing.T) {

	list, err := Parse("sleep 1 & ; echo done")
	require.NoError(t, err)

	jobs, err := list.Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.True(t, jobs[0].Background)
	assert.False(t, jobs[1].Background)

}

func TestParseSyntaxErrors(t *testing.T) {

	tests := map[string]string{
		"leading pipe":       "| ls",
		"double pipe":        "ls | | wc",
		"trailing and":       "ls &&",
		"leading semicolon":  "; ls",
		"redirect first":     "> out.txt",
		"missing target":     "ls >",
		"double redirect":    "ls > > out",
		"operator as target": "ls > | wc",
		"and after and":      "a && && b",
	}

	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(line)
			var syntaxErr *SyntaxError
			require.ErrorAs(t, err, &syntaxErr)
			assert.Contains(t, syntaxErr.Error(), "syntax error")
		})
	}

}

func TestParseRejects(t *testing.T) {

	_, err := Parse("echo hi >> log")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported redirection")

	_, err = Parse(`echo "unterminated`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated quote")

}
