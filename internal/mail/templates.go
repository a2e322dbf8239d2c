package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

// Email templates stored as string constants.
var emailTemplates = map[string]string{
	"registration-received.html": `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>Hello {{.Name}},</p>
    <p>Your registration for plot <strong>{{.PlotNumber}}</strong> has been received.
    The board will review your membership and you will be notified by email once a decision is made.</p>
    <p>— {{.PortalName}}</p>
</body>
</html>`,

	"registration-pending.html": `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>A new registration is awaiting review:</p>
    <p><strong>{{.Name}}</strong> ({{.Email}}), plot <strong>{{.PlotNumber}}</strong>.</p>
    <p>— {{.PortalName}}</p>
</body>
</html>`,

	"registration-approved.html": `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>Hello {{.Name}},</p>
    <p>Your membership for plot <strong>{{.PlotNumber}}</strong> has been approved. You can now log in to the portal.</p>
    <p>— {{.PortalName}}</p>
</body>
</html>`,

	"registration-rejected.html": `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>Hello {{.Name}},</p>
    <p>Unfortunately your membership application for plot <strong>{{.PlotNumber}}</strong> was declined.
    Please contact the board if you believe this is a mistake.</p>
    <p>— {{.PortalName}}</p>
</body>
</html>`,

	"reading-received.html": `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>Hello,</p>
    <p>A meter reading of <strong>{{.Value}}</strong> was recorded for plot <strong>{{.PlotNumber}}</strong>
    for the {{.Period}} period. The meter number is now locked for this plot.</p>
    <p>If this was not submitted by your household, please contact the board.</p>
    <p>— {{.PortalName}}</p>
</body>
</html>`,

	"unlock-notice.html": `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>Hello,</p>
    <p>The meter number for plot <strong>{{.PlotNumber}}</strong> has been reset by the board.
    You will be asked to confirm the meter number again on your next reading submission.
    Previously submitted readings are unaffected.</p>
    <p>— {{.PortalName}}</p>
</body>
</html>`,

	"news-broadcast.html": `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <h3>{{.Title}}</h3>
    <p>{{.Body}}</p>
    <p>— {{.PortalName}}</p>
</body>
</html>`,
}

// renderTemplate renders an email template with the provided data.
func renderTemplate(name string, data map[string]any) (string, error) {
	raw, ok := emailTemplates[name]
	if !ok {
		return "", fmt.Errorf("mail: template %s not found", name)
	}
	tpl, err := template.New(name).Parse(raw)
	if err != nil {
		return "", fmt.Errorf("mail: parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mail: render template %s: %w", name, err)
	}
	return buf.String(), nil
}
