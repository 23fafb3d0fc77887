package auth

import (
	"regexp"
	"strings"
)

// studentEmail accepts addresses on ln.hk or ln.edu.hk and any subdomain
// of either, e.g. "chan@ln.hk" or "wong@life.ln.edu.hk".
var studentEmail = regexp.MustCompile(`^[^\s@]+@([a-z0-9-]+\.)*ln\.(edu\.)?hk$`)

// IsStudentEmail reports whether email may own a primary account.
func IsStudentEmail(email string) bool {
	return studentEmail.MatchString(strings.ToLower(strings.TrimSpace(email)))
}
