package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit_ShortContentUnchanged(t *testing.T) {
	content := "hello world"
	chunks := Split(content, 2000)
	require.Equal(t, []string{content}, chunks)
}

func TestSplit_ExactlyMaxLen(t *testing.T) {
	content := strings.Repeat("a", 50)
	chunks := Split(content, 50)
	require.Len(t, chunks, 1)
}

func TestSplit_EveryChunkWithinMaxLen(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString("line of text that takes some space\n")
	}
	chunks := Split(b.String(), 200)
	require.True(t, len(chunks) > 1)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), 200)
	}
}

func TestSplit_FenceReopensAcrossCut(t *testing.T) {
	var code strings.Builder
	for i := 0; i < 200; i++ {
		code.WriteString("const x = 1;\n")
	}
	content := "```typescript\n" + code.String() + "```"

	chunks := Split(content, 300)
	require.True(t, len(chunks) >= 2)

	for i, c := range chunks {
		opens := strings.Count(c, "```")
		require.True(t, opens%2 == 0 || i == len(chunks)-1 || i == 0, "chunk %d has unbalanced fences: %q", i, c)
	}

	require.True(t, strings.HasPrefix(chunks[0], "```typescript"))
	for i := 1; i < len(chunks)-1; i++ {
		if strings.Contains(chunks[i], "```") {
			require.True(t, strings.HasPrefix(chunks[i], "```typescript"))
		}
	}
}

func TestSplit_FenceReopenHasNoBlankLineBeforeFirstCodeLine(t *testing.T) {
	var code strings.Builder
	for i := 0; i < 200; i++ {
		code.WriteString("const x = 1;\n")
	}
	content := "```typescript\n" + code.String() + "```"

	chunks := Split(content, 300)
	require.True(t, len(chunks) >= 3)

	for i := 1; i < len(chunks)-1; i++ {
		c := chunks[i]
		if !strings.HasPrefix(c, "```typescript") {
			continue
		}
		afterFence := strings.TrimPrefix(c, "```typescript\n")
		require.False(t, strings.HasPrefix(afterFence, "\n"), "chunk %d has a blank line after the reopened fence: %q", i, c)
	}
}

func TestEscapeBackticksInCodeBlocks_Idempotent(t *testing.T) {
	content := "```\nfoo `bar` baz\n```"
	once := escapeBackticksInCodeBlocks(content)
	twice := escapeBackticksInCodeBlocks(once)
	require.Equal(t, once, twice)
}

func TestEscapeBackticksInCodeBlocks_LeavesFencesIntact(t *testing.T) {
	content := "```go\nfmt.Println(`hi`)\n```"
	out := escapeBackticksInCodeBlocks(content)
	require.True(t, strings.HasPrefix(out, "```go"))
	require.True(t, strings.HasSuffix(out, "```"))
	require.Contains(t, out, `\`+"`hi\\`")
}

func TestSplit_HugeMaxLenReturnsWhole(t *testing.T) {
	content := strings.Repeat("x", 10000)
	chunks := Split(content, 1<<30)
	require.Equal(t, []string{content}, chunks)
}
