// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package slice_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/piggybank/pkg/slice"
)

/*
TestMap transforms every element and keeps nil as nil.
*/
func TestMap(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, slice.Map([]string{"a", "bb", "ccc"}, func(s string) int { return len(s) }))
	assert.Nil(t, slice.Map[string, int](nil, func(s string) int { return len(s) }))
}

/*
TestUniqueBy keeps the first spelling of each key.
*/
func TestUniqueBy(t *testing.T) {
	got := slice.UniqueBy([]string{"Admin", "user", "ADMIN", "User", "Guest"}, strings.ToLower)
	assert.Equal(t, []string{"Admin", "user", "Guest"}, got)
	assert.Nil(t, slice.UniqueBy[string, string](nil, strings.ToLower))
}
