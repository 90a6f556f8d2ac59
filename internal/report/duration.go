package report

import (
	"math"
	"strconv"
	"strings"
)

// ParseDuration converts a colon-separated duration ("H:MM:SS" or "M:SS")
// into whole minutes, rounded to nearest. Any other shape reports ok=false
// and callers fall back to the missing sentinel.
func ParseDuration(s string) (minutes int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, false
		}
		nums = append(nums, n)
	}

	switch len(nums) {
	case 3:
		total := float64(nums[0])*60 + float64(nums[1]) + float64(nums[2])/60
		return int(math.Round(total)), true
	case 2:
		total := float64(nums[0]) + float64(nums[1])/60
		return int(math.Round(total)), true
	default:
		return 0, false
	}
}
