package mail

import (
	"fmt"
	"net/url"
	"time"
)

// VerificationCode is the email carrying a student verification code.
func VerificationCode(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Your verification code",
		Text: fmt.Sprintf("Your verification code is %s.\n\nIt expires in %d minutes. "+
			"If you did not request it, ignore this email.", code, int(ttl.Minutes())),
	}
}

// PasswordReset is the email carrying a reset link to
// {baseURL}/reset-password?userId=...&secret=...
func PasswordReset(to, baseURL, userID, secret string, ttl time.Duration) Message {
	q := url.Values{"userId": {userID}, "secret": {secret}}
	link := baseURL + "/reset-password?" + q.Encode()
	return Message{
		To:      to,
		Subject: "Reset your password",
		Text: fmt.Sprintf("Open this link to choose a new password:\n\n%s\n\n"+
			"The link expires in %d minutes and works once.", link, int(ttl.Minutes())),
	}
}
