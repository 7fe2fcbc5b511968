package storage

import (
	"sort"
	"time"

	"assistantmemory/internal/models"
)

// Apply runs q over records in memory: owner, equality and tag filters,
// newest-first ordering with ties kept in insertion order, then skip and
// limit. Expired records never match. records is not modified.
//
// The database backend reproduces these semantics natively; this function is
// the reference both must agree with.
func Apply[T models.Record](records []T, q Query, now time.Time) *Page[T] {
	q = q.normalized()

	matched := make([]T, 0, len(records))
	for _, rec := range records {
		if Matches(rec, q, now) {
			matched = append(matched, rec)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Created().After(matched[j].Created())
	})

	if q.Skip >= len(matched) {
		return &Page[T]{Items: []T{}, Count: 0}
	}
	end := len(matched)
	if q.Limit < end-q.Skip {
		end = q.Skip + q.Limit
	}
	items := matched[q.Skip:end]
	return &Page[T]{Items: items, Count: len(items)}
}

// Matches reports whether rec passes every filter in q
func Matches[T models.Record](rec T, q Query, now time.Time) bool {
	if rec.Expired(now) {
		return false
	}
	if q.Owner != "" && rec.Owner() != q.Owner {
		return false
	}
	for field, want := range q.Equals {
		got, ok := rec.Attr(field)
		if !ok || got != want {
			return false
		}
	}
	if len(q.Tags) > 0 && !intersects(rec.TagSet(), q.Tags) {
		return false
	}
	return true
}

func intersects(have, want []string) bool {
	if len(have) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(want))
	for _, t := range want {
		set[t] = struct{}{}
	}
	for _, t := range have {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}
