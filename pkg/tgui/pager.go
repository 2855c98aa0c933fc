package tgui

import "fmt"

// Page returns the items of 0-based page. Out-of-range pages are clamped
// to the last one. size <= 0 means 10.
func Page[T any](items []T, page, size int) (sub []T, clamped int, hasNext bool) {
	if size <= 0 {
		size = 10
	}
	last := 0
	if len(items) > 0 {
		last = (len(items) - 1) / size
	}
	page = min(max(page, 0), last)
	start := page * size
	end := min(start+size, len(items))
	return items[start:end], page, end < len(items)
}

// PageLabel describes page (0-based) of total items, e.g. "Page 2/3 · 11-20 of 25".
func PageLabel(page, size, total int) string {
	if size <= 0 {
		size = 10
	}
	if total <= 0 {
		return "Page 1/1"
	}
	pages := (total + size - 1) / size
	page = min(max(page, 0), pages-1)
	from := page*size + 1
	to := min((page+1)*size, total)
	return fmt.Sprintf("Page %d/%d · %d-%d of %d", page+1, pages, from, to, total)
}
