package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListBuilderLinksOperators(t *testing.T) {

	list := &List{}
	list.Append("echo", "hi")
	list.Link(OpPipe)
	list.Append("cat")
	list.AddRedirect(StdoutToFile, "out.txt")
	list.Link(OpAnd)
	list.Append("true")

	require.Equal(t, 4, list.Len())

	assert.Equal(t, OpNone, list.Nodes[0].Prev)
	assert.Equal(t, OpPipe, list.Nodes[0].Next)
	assert.Equal(t, OpPipe, list.Nodes[1].Prev)
	assert.Equal(t, OpRedirect, list.Nodes[1].Next)
	assert.Equal(t, OpRedirect, list.Nodes[2].Prev)
	assert.Equal(t, OpAnd, list.Nodes[2].Next)
	assert.Equal(t, OpAnd, list.Nodes[3].Prev)

	assert.True(t, list.Nodes[2].IsRedirect())
	assert.Empty(t, list.Nodes[2].Name())
	assert.Equal(t, Unstarted, list.Nodes[0].PID)

	assert.Equal(t, "echo hi | cat > out.txt && true", list.String())

}

func TestStringQuotesWords(t *testing.T) {

	list := &List{}
	list.Append("echo", "a b", "", "it's", "plain")

	assert.Equal(t, `echo 'a b' '' 'it'\''s' plain`, list.String())

}

func TestJobsPartition(t *testing.T) {

	// sort < in.txt | uniq && echo ok ; sleep 1 &
	list := &List{}
	list.Append("sort")
	list.AddRedirect(StdinFromFile, "in.txt")
	list.Link(OpPipe)
	list.Append("uniq")
	list.Link(OpAnd)
	list.Append("echo", "ok")
	list.Link(OpSequence)
	list.Append("sleep", "1")
	list.Link(OpBackground)

	jobs, err := list.Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	first := jobs[0]
	assert.False(t, first.Background)
	require.Len(t, first.Pipelines, 2)
	assert.Equal(t, OpNone, first.Pipelines[0].Cond)
	assert.Equal(t, OpAnd, first.Pipelines[1].Cond)
	require.Len(t, first.Pipelines[0].Stages, 2)
	require.Len(t, first.Pipelines[0].Stages[0].Redirects, 1)
	assert.Equal(t, "in.txt", first.Pipelines[0].Stages[0].Redirects[0].Target)
	assert.Equal(t, "sort < in.txt | uniq && echo ok", first.String())

	second := jobs[1]
	assert.True(t, second.Background)
	require.Len(t, second.Pipelines, 1)
	assert.Equal(t, OpNone, second.Pipelines[0].Cond)
	assert.Equal(t, "sleep 1", second.String())

}

func TestJobsFirstPipelineAfterSequenceHasNoCondition(t *testing.T) {

	list := &List{}
	list.Append("false")
	list.Link(OpSequence)
	list.Append("true")

	jobs, err := list.Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, OpNone, jobs[1].Pipelines[0].Cond)

}

func TestJobsRejectsMalformedLists(t *testing.T) {

	tests := map[string]func() *List{
		"trailing pipe": func() *List {
			l := &List{}
			l.Append("ls")
			l.Link(OpPipe)
			return l
		},
		"redirect without target": func() *List {
			l := &List{}
			l.Append("ls")
			l.Link(OpRedirect)
			return l
		},
		"redirect without command": func() *List {
			return &List{Nodes: []*Node{{PID: Unstarted, Redirect: StdoutToFile, Target: "out"}}}
		},
		"empty target": func() *List {
			l := &List{}
			l.Append("ls")
			l.AddRedirect(StdoutToFile, "")
			return l
		},
		"empty command": func() *List {
			l := &List{}
			l.Append()
			return l
		},
		"holder after operator": func() *List {
			l := &List{}
			l.Append("ls")
			l.Link(OpAnd)
			l.Nodes = append(l.Nodes, &Node{PID: Unstarted, Prev: OpAnd, Redirect: StdoutToFile, Target: "out"})
			return l
		},
	}

	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := build().Jobs()
			var listErr *ListError
			require.ErrorAs(t, err, &listErr)
			assert.Contains(t, listErr.Error(), "malformed command list")
		})
	}

}

func TestOperatorPredicates(t *testing.T) {

	assert.True(t, OpAnd.Conditional())
	assert.True(t, OpOr.Conditional())
	assert.False(t, OpPipe.Conditional())

	assert.True(t, OpNone.Terminates())
	assert.True(t, OpSequence.Terminates())
	assert.True(t, OpBackground.Terminates())
	assert.False(t, OpRedirect.Terminates())

	assert.Equal(t, "Operator(42)", Operator(42).String())

}
