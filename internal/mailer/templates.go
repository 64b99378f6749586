package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var (
	otpTemplate = template.Must(template.New("otp").Parse(`<p>Hello {{.Name}},</p>
<p>Your verification code is <strong>{{.Code}}</strong>.</p>
<p>It expires in {{.ExpiryMinutes}} minutes. If you did not request it, ignore this email.</p>`))

	verificationTemplate = template.Must(template.New("verify").Parse(`<p>Hello {{.Name}},</p>
<p>Please confirm your email address by opening the link below:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>The link expires in {{.ExpiryHours}} hours.</p>`))

	compensationTemplate = template.Must(template.New("compensation").Parse(`<p>Hello {{.Name}},</p>
<p>Your appointment on {{.When}} was cancelled because the doctor is unavailable.</p>
<p>Use code <strong>{{.Code}}</strong> on your next payment.</p>`))
)

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// OTPEmail builds the one-time code email.
func OTPEmail(to, name, code string, expiryMinutes int) (Message, error) {
	body, err := render(otpTemplate, struct {
		Name          string
		Code          string
		ExpiryMinutes int
	}{name, code, expiryMinutes})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Your verification code", HTML: body}, nil
}

// VerificationEmail builds the email-confirmation link email.
func VerificationEmail(to, name, link string, expiryHours int) (Message, error) {
	body, err := render(verificationTemplate, struct {
		Name        string
		Link        string
		ExpiryHours int
	}{name, link, expiryHours})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Confirm your email address", HTML: body}, nil
}

// CompensationEmail tells a patient their appointment fell on a doctor day-off.
func CompensationEmail(to, name, when, code string) (Message, error) {
	body, err := render(compensationTemplate, struct {
		Name string
		When string
		Code string
	}{name, when, code})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Your appointment was cancelled", HTML: body}, nil
}
