package pagination

import "testing"

func TestClampLimit(t *testing.T) {
	if got := ClampLimit(0, 50, 100); got != 50 {
		t.Fatalf("expected fallback 50, got %d", got)
	}
	if got := ClampLimit(200, 50, 100); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
	if got := ClampLimit(7, 50, 100); got != 7 {
		t.Fatalf("expected passthrough 7, got %d", got)
	}
}

func TestPage(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5}

	page, hasMore := Page(rows, 0, 2)
	if len(page) != 2 || !hasMore {
		t.Fatalf("unexpected first page %v hasMore=%v", page, hasMore)
	}

	page, hasMore = Page(rows, 4, 2)
	if len(page) != 1 || hasMore {
		t.Fatalf("unexpected last page %v hasMore=%v", page, hasMore)
	}

	page, hasMore = Page(rows, 9, 2)
	if page != nil || hasMore {
		t.Fatalf("expected empty page past the end, got %v", page)
	}
}
