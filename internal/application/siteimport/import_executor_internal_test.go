package siteimport

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncateReasonKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	got := truncateReason(strings.Repeat("a", 999) + "é tail")
	require.True(t, utf8.ValidString(got))
	require.Equal(t, strings.Repeat("a", 999), got)

	got = truncateReason(strings.Repeat("日", 400))
	require.True(t, utf8.ValidString(got))
	require.LessOrEqual(t, len(got), 1000)
	require.Equal(t, 333, utf8.RuneCountInString(got))
}

func TestTruncateReasonReplacesInvalidBytes(t *testing.T) {
	t.Parallel()

	got := truncateReason("  driver said \xff\xfe done  ")
	require.True(t, utf8.ValidString(got))
	require.Equal(t, "driver said � done", got)
	require.Equal(t, "short", truncateReason("short"))
}

func TestRecentIDsEvictsOldest(t *testing.T) {
	t.Parallel()

	ids := newRecentIDs(3)
	for i := 0; i < 10; i++ {
		require.False(t, ids.Seen(fmt.Sprintf("evt-%d", i)))
	}
	require.Equal(t, 3, ids.Len())

	require.True(t, ids.Seen("evt-9"))
	require.True(t, ids.Seen("evt-7"))
	require.False(t, ids.Seen("evt-6"), "evicted ids are forgotten")
	require.Equal(t, 3, ids.Len())
}
