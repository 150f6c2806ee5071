// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PageSize is the default number of plans in one list page.
const PageSize = 50

// MaxPageSize caps the "limit" query parameter.
const MaxPageSize = 200

// ParseLimit reads the "limit" query parameter. Missing or invalid values
// give PageSize; larger values are capped at MaxPageSize.
func ParseLimit(r *http.Request) int {
	s := query.Get(r, "limit")
	if s == "" {
		return PageSize
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return PageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// timeKeyLayout is fixed width so keys sort the same as the times they
// encode.
const timeKeyLayout = "2006-01-02T15:04:05.000000000Z"

// TimeKey encodes t as a sortable cursor key.
func TimeKey(t time.Time) string {
	return t.UTC().Format(timeKeyLayout)
}

// Result describes the page that was cut.
type Result struct {
	HasPrev bool
	HasNext bool
	// Next is the cursor for the following page, empty on the last page.
	Next string
}

// KeyFunc extracts the sort key and id of a row.
type KeyFunc[T any] func(T) (string, primitive.ObjectID)

// Descending cuts one page out of rows, which must already be sorted by
// (key, id) descending, starting after the cursor in after. ok is false
// when after is not a cursor this package produced.
func Descending[T any](rows []T, after string, limit int, key KeyFunc[T]) (page []T, res Result, ok bool) {
	if limit < 1 {
		limit = PageSize
	}
	start := 0
	if after != "" {
		c, valid := wafflemongo.DecodeCursor(after)
		if !valid {
			return nil, Result{}, false
		}
		start = len(rows)
		for i, row := range rows {
			k, id := key(row)
			if k < c.CI || (k == c.CI && id.Hex() < c.ID.Hex()) {
				start = i
				break
			}
		}
		res.HasPrev = true
	}

	page = rows[start:]
	if len(page) > limit {
		page = page[:limit]
		res.HasNext = true
		k, id := key(page[len(page)-1])
		res.Next = wafflemongo.EncodeCursor(k, id)
	}
	return page, res, true
}
