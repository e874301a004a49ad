package repository

import (
	"sort"

	"github.com/agora-social/agora/pkg/pagination"
)

// PageOf cuts one normalized page out of items the way Paginate does for
// SQL stores: seek over ascending ids when a cursor is set, otherwise
// sort by column and apply limit and offset. items is reordered in place.
func PageOf[T any](items []T, paging pagination.Paging, id func(*T) string, less func(a, b *T, column string) bool) *pagination.Page[T] {
	page := &pagination.Page[T]{Paging: paging, Total: int64(len(items))}

	if paging.Cursor != "" {
		sort.Slice(items, func(i, j int) bool { return id(&items[i]) < id(&items[j]) })
		start := sort.Search(len(items), func(i int) bool { return id(&items[i]) > paging.Cursor })
		page.Data = window(items, start, paging.Limit)
		return page
	}

	asc := paging.Order == pagination.OrderAsc
	sort.SliceStable(items, func(i, j int) bool {
		if asc {
			return less(&items[i], &items[j], paging.Sort)
		}
		return less(&items[j], &items[i], paging.Sort)
	})
	page.Data = window(items, paging.Offset(), paging.Limit)
	return page
}

func window[T any](items []T, start, limit int) []T {
	if start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return items[start:end]
}
