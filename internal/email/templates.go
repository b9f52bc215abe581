package email

import (
	"bytes"
	"html/template"
	"time"
)

const (
	SubjectOTP   = "Email Verification OTP"
	SubjectReset = "Password Reset"
)

var (
	otpTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">Email Verification</h2>
  <p>Thank you for registering! Please use the following OTP to verify your email address:</p>
  <div style="background-color: #f4f4f4; padding: 20px; text-align: center; margin: 20px 0;">
    <h1 style="color: #007bff; font-size: 32px; margin: 0; letter-spacing: 5px;">{{.Code}}</h1>
  </div>
  <p>This OTP will expire in {{.Minutes}} minutes.</p>
  <p style="color: #666; font-size: 12px;">If you didn't request this OTP, please ignore this email.</p>
</div>`))

	resetTemplate = template.Must(template.New("reset").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">Password Reset</h2>
  <p>Use the link below to choose a new password. It expires in {{.Minutes}} minutes.</p>
  <p><a href="{{.Link}}">{{.Link}}</a></p>
  <p style="color: #666; font-size: 12px;">If you didn't request a reset, please ignore this email.</p>
</div>`))
)

func OTPBody(code string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, struct {
		Code    string
		Minutes int
	}{code, int(ttl.Minutes())})
	return buf.String(), err
}

func ResetBody(link string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	err := resetTemplate.Execute(&buf, struct {
		Link    string
		Minutes int
	}{link, int(ttl.Minutes())})
	return buf.String(), err
}
