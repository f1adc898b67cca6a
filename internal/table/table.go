package table

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alebeck/lined/internal/log"
)

const pad = 2

// Regex to match ANSI escape sequences
var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type Table struct {
	header []string
	data   [][]string
	lens   []int
}

func New(cols ...string) *Table {
	lens := make([]int, len(cols))
	for i, c := range cols {
		lens[i] = length(c)
	}
	return &Table{header: cols, lens: lens}
}

func (t *Table) AddRow(cols ...any) {
	if len(cols) != len(t.header) {
		panic("incorrect number of columns passed")
	}

	strs := make([]string, len(cols))
	for i, c := range cols {
		strs[i] = fmt.Sprintf("%v", c)
		t.lens[i] = max(t.lens[i], length(strs[i]))
	}

	t.data = append(t.data, strs)
}

func (t *Table) String() string {
	var b strings.Builder
	for j, h := range t.header {
		b.WriteString(log.Style(log.Bold, h))
		b.WriteString(strings.Repeat(" ", t.lens[j]+pad-length(h)))
	}
	for _, row := range t.data {
		b.WriteString("\n")
		for j := 0; j < len(t.header); j++ {
			b.WriteString(row[j])
			b.WriteString(strings.Repeat(" ", t.lens[j]+pad-length(row[j])))
		}
	}
	b.WriteString("\n")
	return b.String()
}

func length(s string) int {
	return len(ansi.ReplaceAllString(s, ""))
}
