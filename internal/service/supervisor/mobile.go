package supervisor

import "regexp"

var mobileUserAgent = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

// IsMobileUserAgent reports whether a client runs in a browser that throttles
// timers in the background and so needs a Supervisor.
func IsMobileUserAgent(userAgent string) bool {
	return mobileUserAgent.MatchString(userAgent)
}
