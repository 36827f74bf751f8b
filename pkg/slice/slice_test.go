// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package slice_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/careops/pkg/slice"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, slice.Map([]string{"a", "b"}, strings.ToUpper))
	assert.Nil(t, slice.Map[string, string](nil, strings.ToUpper))
}

func TestFilter(t *testing.T) {
	nonEmpty := func(s string) bool { return s != "" }

	assert.Equal(t, []string{"x", "y"}, slice.Filter([]string{"x", "", "y"}, nonEmpty))
	assert.Nil(t, slice.Filter([]string{""}, nonEmpty))
}
