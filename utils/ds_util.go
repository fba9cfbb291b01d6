package utils

import (
	"github.com/emirpasic/gods/sets"
	"github.com/emirpasic/gods/sets/hashset"
)

func List2set[T any](list []T) sets.Set {
	set := hashset.New()
	for _, value := range list {
		set.Add(value)
	}
	return set
}

// Distinct 去重并保持原来的顺序
func Distinct[T comparable](list []T) []T {
	seen := hashset.New()
	result := make([]T, 0, len(list))
	for _, value := range list {
		if seen.Contains(value) {
			continue
		}
		seen.Add(value)
		result = append(result, value)
	}
	return result
}
