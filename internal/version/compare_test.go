package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.10", "1.9", 1},
		{"1.0.1", "1.0", 1},
		{"1.0-beta", "1.0", -1},
		{"1.0-beta", "1.0-rc", -1},
		{"1.0-rc1", "1.0-rc2", -1},
		{"v2.0", "2.0", 0},
		{"2.0", "V2.0", 0},
		{"1.0.0", "1.0", 1},
		{"20230101", "20221231", 1},
		{"2023.01.05", "2023.1.4", 1},
		{"1.0a", "1.0b", -1},
		{"1.0.1", "1.0.beta", 1},
		{"nightly", "99.0", 1},
		{"1.0", "nightly", -1},
		{"nightly", "Nightly", 0},
		{"123456789012345678901234567890", "123456789012345678901234567889", 1},
		{"007", "7", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Compare(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
		assert.Equal(t, -tc.want, Compare(tc.b, tc.a), "%s vs %s", tc.b, tc.a)
	}
}

func TestLess(t *testing.T) {
	assert.True(t, Less("1.0", "1.1"))
	assert.False(t, Less("1.1", "1.0"))
}

func TestLatest(t *testing.T) {
	assert.Equal(t, "", Latest(nil))
	assert.Equal(t, "2.10", Latest([]string{"2.9", "2.10", "1.0", "2.10-rc1"}))
	assert.Equal(t, "nightly", Latest([]string{"1.0", "nightly"}))
}
