package resolver

import (
	"strconv"
	"strings"
	"time"

	"github.com/zerbitx/mockserver/mock"
)

// DelayHeader holds the milliseconds a response is held back. It never reaches the client.
const DelayHeader = "Response-Delay"

// ParseDelay reads a millisecond count, anything that is not a non-negative integer is zero
func ParseDelay(value string) int {
	ms, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || ms < 0 {
		return 0
	}

	return ms
}

// ResponseDelay returns the delay declared by the Response-Delay header
func ResponseDelay(headers mock.Headers) time.Duration {
	return time.Duration(ParseDelay(headers.Get(DelayHeader))) * time.Millisecond
}
