// Package email delivers login confirmation messages. The core only hands
// over the confirmation URL; everything about rendering and transport stays
// behind the Sender interface.
package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/pkg/errors"
)

// Message is a rendered email ready for delivery.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message to a single recipient.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}

// Params is passed as data when executing the login email template.
type Params struct {
	Email      string
	SiteName   string
	ConfirmURL string
	Expiration time.Duration
}

// DefaultTextTemplate is the plain-text body of the login email.
const DefaultTextTemplate = `Hi {{.Email}},

Click this magic link to login to {{.SiteName}}:

{{.ConfirmURL}}

The link is valid for {{printf "%.f" .Expiration.Minutes}} minutes.

If you did not request a login, you can ignore this email.
`

var textTemplate = template.Must(template.New("login").Parse(DefaultTextTemplate))

// LoginMessage renders the login confirmation email for params.
func LoginMessage(params Params) (Message, error) {
	var text bytes.Buffer
	if err := textTemplate.Execute(&text, params); err != nil {
		return Message{}, errors.Wrap(err, "[LoginMessage] execute template")
	}

	html := fmt.Sprintf(
		`<strong>Click <a href="%s">this magic link</a> to login to %s!</strong>`,
		params.ConfirmURL, params.SiteName)

	return Message{
		Subject: fmt.Sprintf("Login to %s", params.SiteName),
		Text:    text.String(),
		HTML:    html,
	}, nil
}
