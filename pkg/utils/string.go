package utils

// Truncate caps s at maxLen bytes, marking the cut with an ellipsis.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
