package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"
	"tasknest/config"
)

type EmailData struct {
	Subject   string
	To        []string
	CC        []string
	BCC       []string
	Template  string
	Data      interface{}
	Year      int
	FromName  string
	FromEmail string
}

// Embedded email templates
var emailTemplates = map[string]string{
	"project_invite": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .button { display: inline-block; padding: 10px 20px; background-color: #3498db; color: white; text-decoration: none; border-radius: 4px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>You've been invited to a project</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p><strong>{{.InviterName}}</strong> invited you to join the project <strong>{{.ProjectName}}</strong>.</p>

        <p style="text-align: center;">
            <a href="{{.JoinLink}}" class="button">Join Project</a>
        </p>

        <p>Create an account with this email address and the project will be waiting for you.</p>

        <p>Or copy and paste this link into your browser:<br>
        <small>{{.JoinLink}}</small></p>
    </div>

    <div class="footer">
        <p>If you weren't expecting this invitation, you can safely ignore this email.</p>
        <p>© {{.Year}} TaskNest. All rights reserved.</p>
    </div>
</body>
</html>`,

	"welcome": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Welcome to TaskNest</h2>
    </div>

    <div class="content">
        <p>Hello {{.Name}},</p>
        <p>Your account is ready. Create a project, invite your team and start tracking work.</p>
    </div>

    <div class="footer">
        <p>© {{.Year}} TaskNest. All rights reserved.</p>
    </div>
</body>
</html>`,
}

func SendEmail(data EmailData) error {
	if config.AppConfig.SMTPHost == "" {
		return fmt.Errorf("SMTP is not configured")
	}
	if data.FromEmail == "" {
		data.FromEmail = config.AppConfig.FromEmail
	}
	if data.FromName == "" {
		data.FromName = config.AppConfig.FromName
	}
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}

	tmplContent, ok := emailTemplates[data.Template]
	if !ok {
		return fmt.Errorf("template '%s' not found", data.Template)
	}

	tmpl, err := template.New("email").Parse(tmplContent)
	if err != nil {
		return fmt.Errorf("error parsing template: %v", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data.Data); err != nil {
		return fmt.Errorf("error executing template: %v", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", data.FromName, data.FromEmail))
	m.SetHeader("To", data.To...)
	if len(data.CC) > 0 {
		m.SetHeader("Cc", data.CC...)
	}
	if len(data.BCC) > 0 {
		m.SetHeader("Bcc", data.BCC...)
	}
	m.SetHeader("Subject", data.Subject)
	m.SetBody("text/html", body.String())

	d := gomail.NewDialer(
		config.AppConfig.SMTPHost,
		config.AppConfig.SMTPPort,
		config.AppConfig.SMTPUsername,
		config.AppConfig.SMTPPassword,
	)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}

	return nil
}

// SendInviteEmail mails a pending-member invitation. Callers treat a
// failure as non-fatal: the invite row already exists and the project
// member list is the source of truth.
func SendInviteEmail(email, inviterName, projectName, joinLink string) error {
	data := EmailData{
		Subject:  fmt.Sprintf("%s invited you to %s", inviterName, projectName),
		To:       []string{email},
		Template: "project_invite",
		Year:     time.Now().Year(),
		Data: struct {
			Subject     string
			InviterName string
			ProjectName string
			JoinLink    string
			Year        int
		}{
			Subject:     "Project invitation",
			InviterName: inviterName,
			ProjectName: projectName,
			JoinLink:    joinLink,
			Year:        time.Now().Year(),
		},
	}

	return SendEmail(data)
}

func SendWelcomeEmail(email, name string) error {
	data := EmailData{
		Subject:  "Welcome to TaskNest",
		To:       []string{email},
		Template: "welcome",
		Year:     time.Now().Year(),
		Data: struct {
			Subject string
			Name    string
			Year    int
		}{
			Subject: "Welcome to TaskNest",
			Name:    name,
			Year:    time.Now().Year(),
		},
	}

	return SendEmail(data)
}
