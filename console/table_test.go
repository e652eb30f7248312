package console

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_ReplaceKeepsPosition(t *testing.T) {
	for _, kind := range []Kind{Fields, Variables} {
		t.Run(string(kind), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(1, 2))
			for trial := 0; trial < 50; trial++ {
				tbl := NewTable(kind)
				n := 1 + rng.IntN(8)
				for i := 0; i < n; i++ {
					tbl.Insert(fmt.Sprintf("k%d@example.com", i), "v1")
				}
				pos := rng.IntN(n)
				key := fmt.Sprintf("k%d@example.com", pos)

				idx, replaced := tbl.Insert(key, "v2")

				assert.True(t, replaced)
				assert.Equal(t, pos, idx)
				require.Equal(t, n, tbl.Len())
				rows := tbl.Rows()
				assert.Equal(t, Record{Key: key, Value: "v2"}, rows[pos])
				for i, r := range rows {
					if i != pos {
						assert.Equal(t, "v1", r.Value)
					}
				}
			}
		})
	}
}

func TestTable_DistinctKeysKeepInsertionOrder(t *testing.T) {
	tbl := NewTable(Variables)
	tbl.Insert("b", "2")
	tbl.Insert("a", "1")
	tbl.Insert("c", "3")

	assert.Equal(t, []Record{{"b", "2"}, {"a", "1"}, {"c", "3"}}, tbl.Rows())
}

func TestTable_FieldKeysAreLowercased(t *testing.T) {
	tbl := NewTable(Fields)
	tbl.Insert("alice@example.com", "1000")
	idx, replaced := tbl.Insert("ALICE@example.com", "2000")

	assert.True(t, replaced)
	assert.Equal(t, 0, idx)
	assert.Equal(t, []Record{{"alice@example.com", "2000"}}, tbl.Rows())
}

func TestTable_VariableKeysKeepCase(t *testing.T) {
	tbl := NewTable(Variables)
	tbl.Insert("Sales", "a")
	tbl.Insert("sales", "b")
	tbl.Insert("Sales", "c")

	assert.Equal(t, []Record{{"Sales", "c"}, {"sales", "b"}}, tbl.Rows())
}

func TestTable_EscapesForDisplay(t *testing.T) {
	tbl := NewTable(Variables)
	tbl.Insert(`dept == "R&D"`, "<b>hi</b>")
	tbl.Insert(`dept == "R&D"`, "<i>again</i>")

	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, Record{Key: "dept == &#34;R&amp;D&#34;", Value: "&lt;i&gt;again&lt;/i&gt;"}, tbl.Rows()[0])
	assert.Equal(t, []Record{{Key: `dept == "R&D"`, Value: "<i>again</i>"}}, tbl.Records())
}

func TestTable_RemoveAt(t *testing.T) {
	tbl := NewTable(Variables)
	tbl.Insert("a", "1")
	tbl.Insert("b", "2")
	tbl.Insert("c", "3")

	require.NoError(t, tbl.RemoveAt(1))
	assert.Equal(t, []Record{{"a", "1"}, {"c", "3"}}, tbl.Rows())
	assert.ErrorIs(t, tbl.RemoveAt(2), ErrRowOutOfRange)
	assert.ErrorIs(t, tbl.RemoveAt(-1), ErrRowOutOfRange)

	tbl.Clear()
	assert.Zero(t, tbl.Len())
	assert.Empty(t, tbl.Records())
}
