package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTables_BasicTable(t *testing.T) {
	input := "| Name | Age |\n| --- | --- |\n| Alice | 30 |\n| Bob | 7 |\n"
	out := NormalizeTables(input)

	require.Contains(t, out, "```")
	require.Contains(t, out, "Name")
	require.Contains(t, out, "Alice")
	require.Contains(t, out, "Bob")
}

func TestNormalizeTables_NonTablePassesThrough(t *testing.T) {
	input := "just some plain text\nwith two lines\n"
	out := NormalizeTables(input)
	require.Equal(t, input, out)
}

func TestNormalizeTables_StripsInlineMarkup(t *testing.T) {
	input := "| Col |\n| --- |\n| **bold** |\n"
	out := NormalizeTables(input)
	require.NotContains(t, out, "**")
	require.True(t, strings.Contains(out, "bold"))
}
