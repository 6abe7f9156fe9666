package engine

import "strconv"

func formatSeconds(n int) string {
	return strconv.Itoa(max(0, n)) + "s"
}
