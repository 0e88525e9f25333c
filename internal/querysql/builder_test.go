package querysql

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peerdb/internal/column"
	"github.com/roach88/peerdb/internal/criteria"
	"github.com/roach88/peerdb/internal/dialect"
)

var (
	bookID       = column.New("", "book", "book_id")
	bookTitle    = column.New("", "book", "title")
	bookPrice    = column.New("", "book", "price")
	bookAuthorID = column.New("", "book", "author_id")
	authorID     = column.New("", "author", "author_id")
	authorName   = column.New("", "author", "name")
)

func builderFor(t *testing.T, name string) *Builder {
	t.Helper()
	a, err := dialect.Lookup(name)
	require.NoError(t, err)
	return NewBuilder(a)
}

// render is the golden file format: statement, then parameters.
func render(q *Query) []byte {
	return []byte(fmt.Sprintf("%s\n%v\n", q.String(), q.Args()))
}

func TestBuildSelect_Golden(t *testing.T) {
	g := goldie.New(t)

	t.Run("select_simple", func(t *testing.T) {
		c := criteria.New().
			AddSelectColumn(bookID, bookTitle).
			WhereEq(bookTitle, "Go").
			And(criteria.Cmp(bookPrice, criteria.GreaterThan, 10)).
			AddAscendingOrderBy(bookTitle).
			SetLimit(10).
			SetOffset(20)

		q, err := builderFor(t, "sqlite").BuildSelect(c)
		require.NoError(t, err)
		assert.True(t, q.NativeLimit)
		g.Assert(t, "select_simple", render(q))
	})

	t.Run("select_join_or", func(t *testing.T) {
		c := criteria.New().
			AddSelectColumn(bookTitle, authorName).
			AddJoin(bookAuthorID, authorID, criteria.InnerJoin).
			And(criteria.AnyOf(
				&criteria.Criterion{Column: authorName, Op: criteria.Equal, Value: "Pike", IgnoreCase: true},
				criteria.Eq(authorName, nil),
			)).
			And(criteria.Cmp(bookID, criteria.In, []int{1, 2, 3})).
			AddDescendingOrderBy(authorName).
			SetDistinct(true)

		q, err := builderFor(t, "sqlite").BuildSelect(c)
		require.NoError(t, err)
		g.Assert(t, "select_join_or", render(q))
	})

	t.Run("select_emulated", func(t *testing.T) {
		c := criteria.New().AddSelectColumn(bookTitle).SetLimit(5).SetOffset(10)

		q, err := builderFor(t, "generic").BuildSelect(c)
		require.NoError(t, err)
		assert.False(t, q.NativeLimit)
		assert.Equal(t, 10, q.Offset)
		assert.Equal(t, 5, q.Limit)
		g.Assert(t, "select_emulated", render(q))
	})
}

func TestBuildDelete_Golden(t *testing.T) {
	g := goldie.New(t)

	q, err := builderFor(t, "sqlite").BuildDelete(criteria.New().WhereEq(bookID, 7))
	require.NoError(t, err)
	assert.Equal(t, KindDelete, q.Kind)
	g.Assert(t, "delete", render(q))
}

func TestBuildUpdate_Golden(t *testing.T) {
	g := goldie.New(t)

	q, err := builderFor(t, "sqlite").BuildUpdate("book",
		[]string{"title = ?", "updated = CURRENT_TIMESTAMP"},
		[]any{"New"},
		criteria.New().WhereEq(bookID, 7))
	require.NoError(t, err)
	g.Assert(t, "update", render(q))
}

func TestBuildSelect_NoColumns(t *testing.T) {
	_, err := builderFor(t, "sqlite").BuildSelect(criteria.New())
	assert.Error(t, err)
}

func TestBuildSelect_ExpressionOnlyHasEmptySource(t *testing.T) {
	q, err := builderFor(t, "sqlite").BuildSelect(criteria.New().AddSelectColumn(column.Parse("count(*)")))
	require.NoError(t, err)
	assert.Empty(t, q.From)

	q.AddTable("book")
	assert.Equal(t, "SELECT count(*) FROM book", q.String())
}

func TestCompileCriterion_Values(t *testing.T) {
	b := builderFor(t, "sqlite")

	tests := []struct {
		name       string
		pred       criteria.Predicate
		wantSQL    string
		wantParams []any
	}{
		{"null equals", criteria.Eq(bookTitle, nil), "book.title IS NULL", nil},
		{"null not equals", criteria.Cmp(bookTitle, criteria.NotEqual, nil), "book.title IS NOT NULL", nil},
		{"is not null", criteria.Cmp(bookTitle, criteria.IsNotNull, nil), "book.title IS NOT NULL", nil},
		{"column compare", criteria.Eq(bookAuthorID, authorID), "book.author_id = author.author_id", nil},
		{"empty in", criteria.Cmp(bookID, criteria.In, []int{}), "1 = 0", nil},
		{"empty not in", criteria.Cmp(bookID, criteria.NotIn, []string{}), "1 = 1", nil},
		{"like", criteria.Cmp(bookTitle, criteria.Like, "Go%"), "book.title LIKE ?", []any{"Go%"}},
		{"raw", &criteria.Raw{SQL: "length(book.title) > ?", Params: []any{3}}, "length(book.title) > ?", []any{3}},
		{"empty or", criteria.AnyOf(), "1 = 0", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := b.compilePredicate(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestCompileCriterion_Errors(t *testing.T) {
	b := builderFor(t, "sqlite")

	_, _, err := b.compilePredicate(criteria.Cmp(bookID, criteria.In, 5))
	assert.Error(t, err)

	_, _, err = b.compilePredicate(criteria.Cmp(bookID, criteria.LessThan, nil))
	assert.Error(t, err)
}

func TestQuery_HasTable(t *testing.T) {
	q := &Query{Kind: KindDelete}
	q.AddTable("BOOK")
	assert.True(t, q.HasTable("book", func(a, b string) bool { return len(a) == len(b) }))
	assert.False(t, q.HasTable("author", func(a, b string) bool { return a == b }))
}
