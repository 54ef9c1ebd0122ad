package config

type SmtpConfig interface {
	GetSmtpHost() string
	GetSmtpPort() string
	GetSmtpAccount() string
	GetSmtpPassword() string
	GetEmailFrom() string
}

type Smtp struct{}

var _ SmtpConfig = Smtp{}

func (Smtp) GetSmtpHost() string {
	return GetEnv("SMTP_HOST", "smtp.gmail.com")
}

func (Smtp) GetSmtpPort() string {
	return GetEnv("SMTP_PORT", "587")
}

func (Smtp) GetSmtpAccount() string {
	return GetEnv("SMTP_ACCOUNT", "")
}

func (Smtp) GetSmtpPassword() string {
	return GetEnv("SMTP_PASSWORD", "")
}

// GetEmailFrom is the verified sender address for login emails.
func (Smtp) GetEmailFrom() string {
	return GetEnv("EMAIL_FROM", "magic@localhost")
}
