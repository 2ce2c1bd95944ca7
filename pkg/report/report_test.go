package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdown(t *testing.T) {
	md := Markdown(
		"Cannot reach Neo4j server",
		"The driver could not connect.",
		[]string{"Neo4j is not running.", "Wrong port."},
		[]string{"Start Neo4j."},
		[]string{"URI: " + Code("bolt://localhost:7687")},
	)

	assert.True(t, strings.HasPrefix(md, "### Cannot reach Neo4j server\n"))
	assert.Contains(t, md, "**1) What went wrong**\n\n- The driver could not connect.")
	assert.Contains(t, md, "- Neo4j is not running.\n- Wrong port.")
	assert.Contains(t, md, "**3) How to fix it**\n\n- Start Neo4j.")
	assert.Contains(t, md, "**Details (for debugging)**\n- URI: `bolt://localhost:7687`")

	i1 := strings.Index(md, "What went wrong")
	i2 := strings.Index(md, "What could have caused")
	i3 := strings.Index(md, "How to fix")
	assert.Less(t, i1, i2)
	assert.Less(t, i2, i3)
}

func TestMarkdownWithoutDetails(t *testing.T) {
	md := Markdown("Connection successful", "Nothing went wrong.", nil, nil, nil)
	assert.NotContains(t, md, "Details")
	assert.False(t, strings.HasSuffix(md, "\n"))
}

func TestCode(t *testing.T) {
	assert.Equal(t, "`a'b`", Code("a`b"))
}
