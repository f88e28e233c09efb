package utils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/millworks/backoffice/internal/database/dbtest"
)

func TestGetPaginationParams(t *testing.T) {
	tests := []struct {
		name          string
		page, limit   string
		expectedPage  int
		expectedLimit int
	}{
		{"defaults", "", "", 1, 10},
		{"explicit", "3", "25", 3, 25},
		{"zero page", "0", "5", 1, 5},
		{"negative", "-2", "-5", 1, 10},
		{"garbage", "abc", "x1", 1, 10},
		{"limit capped", "1", "500", 1, 100},
		{"whitespace", " 2 ", " 7", 2, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := GetPaginationParams(tt.page, tt.limit)
			assert.Equal(t, tt.expectedPage, p.Page)
			assert.Equal(t, tt.expectedLimit, p.Limit)
		})
	}
}

func TestPageParams_Offset(t *testing.T) {
	assert.Equal(t, 0, PageParams{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 40, PageParams{Page: 5, Limit: 10}.Offset())
}

func TestGetSortParams(t *testing.T) {
	allowed := map[string]string{"name": "name", "createdAt": "created_at"}
	def := SortParams{Column: "created_at", Desc: true}

	assert.Equal(t, def, GetSortParams("", "", allowed, def))
	assert.Equal(t, SortParams{Column: "name", Desc: false}, GetSortParams("name", "asc", allowed, def))
	assert.Equal(t, SortParams{Column: "created_at", Desc: true}, GetSortParams("password; DROP TABLE", "DESC", allowed, def))
	assert.Equal(t, "created_at DESC, id DESC", def.OrderClause())
	assert.Equal(t, "id ASC", SortParams{Column: "id"}.OrderClause())
}

func TestNewPage(t *testing.T) {
	page := NewPage([]int{1, 2, 3}, 23, PageParams{Page: 3, Limit: 10})
	assert.Equal(t, PageMeta{TotalItems: 23, ItemCount: 3, ItemsPerPage: 10, TotalPages: 3, CurrentPage: 3}, page.Meta)

	empty := NewPage[int](nil, 0, PageParams{Page: 1, Limit: 10})
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.Meta.TotalPages)
}

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestPaginate(t *testing.T) {
	db := dbtest.New(t, &widget{})
	for i := 1; i <= 25; i++ {
		require.NoError(t, db.Create(&widget{Name: fmt.Sprintf("w_%02d", i)}).Error)
	}

	page, err := Paginate[widget](db.Model(&widget{}), PageParams{Page: 3, Limit: 10}, SortParams{Column: "name"})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Meta.TotalItems)
	assert.Equal(t, 5, page.Meta.ItemCount)
	assert.Equal(t, 3, page.Meta.TotalPages)
	assert.Equal(t, "w_21", page.Items[0].Name)

	filtered, err := Paginate[widget](db.Model(&widget{}).Where(ILike("name"), ContainsPattern("W_1")), PageParams{Page: 1, Limit: 10}, SortParams{Column: "id"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), filtered.Meta.TotalItems)
	assert.Equal(t, "w_10", filtered.Items[0].Name)
}

func TestParseHelpers(t *testing.T) {
	v, ok := ParseBool("true")
	assert.True(t, ok)
	assert.True(t, v)
	_, ok = ParseBool("")
	assert.False(t, ok)
	_, ok = ParseBool("maybe")
	assert.False(t, ok)

	n, ok := ParseUint("42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), n)
	_, ok = ParseUint("0")
	assert.False(t, ok)

	assert.Equal(t, `50\%\_off%`, PrefixPattern("50%_off"))
}
