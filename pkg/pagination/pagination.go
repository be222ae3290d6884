package pagination

// ClampLimit enforces a default and a per-operation maximum page size.
func ClampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}

// ClampOffset floors negative offsets to zero.
func ClampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// Page slices rows for the given offset/limit and reports whether more remain.
func Page[T any](rows []T, offset, limit int) (page []T, hasMore bool) {
	if offset >= len(rows) {
		return nil, false
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], end < len(rows)
}
