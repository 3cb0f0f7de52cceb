package mail

import (
	"bytes"
	htmltemplate "html/template"
	"strconv"
	texttemplate "text/template"
	"time"
)

const resetSubject = "Your password reset code"

const resetText = `Hello,

Use this code to reset your password: {{.Code}}

The code expires in {{.ValidFor}} ({{.ExpiresAt}}).
If you did not ask for a reset you can ignore this email.
`

const resetHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Password reset</h2>
    <p>Use this code to reset your password:</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">{{.Code}}</div>
    <p>The code expires in {{.ValidFor}} ({{.ExpiresAt}}).</p>
    <p style="color: #888;">If you did not ask for a reset you can ignore this email.</p>
  </div>
</body>
</html>
`

var (
	resetTextTmpl = texttemplate.Must(texttemplate.New("reset-text").Parse(resetText))
	resetHTMLTmpl = htmltemplate.Must(htmltemplate.New("reset-html").Parse(resetHTML))
)

type resetData struct {
	Code      string
	ValidFor  string
	ExpiresAt string
}

// PasswordResetMessage renders the email carrying a reset code and its
// human-readable expiry.
func PasswordResetMessage(to, code string, issuedAt, expiresAt time.Time) (Message, error) {
	data := resetData{
		Code:      code,
		ValidFor:  HumanDuration(expiresAt.Sub(issuedAt)),
		ExpiresAt: expiresAt.UTC().Format("Jan 2, 2006 15:04 MST"),
	}

	var text, html bytes.Buffer
	if err := resetTextTmpl.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := resetHTMLTmpl.Execute(&html, data); err != nil {
		return Message{}, err
	}

	return Message{To: to, Subject: resetSubject, Text: text.String(), HTML: html.String()}, nil
}

// HumanDuration renders whole minutes ("15 minutes", "1 minute"), falling
// back to seconds under a minute.
func HumanDuration(d time.Duration) string {
	if d < time.Minute {
		s := int(d.Round(time.Second) / time.Second)
		return plural(s, "second")
	}
	return plural(int(d.Round(time.Minute)/time.Minute), "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
