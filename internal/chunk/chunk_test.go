package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func lines(n int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func TestSplit_SmallFileIsOneChunk(t *testing.T) {
	src := "package main\n\nfunc main() {}\n"
	assert.Equal(t, []string{"package main\n\nfunc main() {}"}, Split(src, 10))
}

func TestSplit_PrefersBlankLines(t *testing.T) {
	a := strings.Join(lines(4, "a"), "\n")
	b := strings.Join(lines(4, "b"), "\n")
	got := Split(a+"\n\n"+b+"\n", 6)

	assert.Equal(t, []string{a, b}, got)
}

func TestSplit_HardCutWithoutBlankLines(t *testing.T) {
	got := Split(strings.Join(lines(10, "x"), "\n"), 4)

	assert.Len(t, got, 3)
	for _, c := range got {
		assert.LessOrEqual(t, strings.Count(c, "\n")+1, 4)
	}
	assert.Equal(t, "x8\nx9", got[2])
}

func TestSplit_DropsBlankChunks(t *testing.T) {
	assert.Empty(t, Split("\n\n   \n\n", 2))
	assert.Empty(t, Split("", 5))
}

func TestSplit_CRLF(t *testing.T) {
	assert.Equal(t, []string{"a\nb"}, Split("a\r\nb\r\n", 0))
}
