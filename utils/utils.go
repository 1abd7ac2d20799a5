package utils

import (
	// Go Internal Packages
	"strconv"
	"strings"
)

// JoinInt32Slice renders partition numbers as "0,1,2".
func JoinInt32Slice(ints []int32) string {
	var b strings.Builder
	for i, v := range ints {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(int64(v), 10))
	}
	return b.String()
}
