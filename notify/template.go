package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"github.com/MrEthical07/authcore"
)

type wording struct {
	subject string
	intro   string
	action  string
	outro   string
}

var wordings = map[authcore.NotificationKind]wording{
	authcore.NotifyPasswordResetLink: {
		subject: "Reset your password",
		intro:   "We received a request to reset the password of your account.",
		action:  "Reset password",
		outro:   "If you did not ask for this, you can ignore this message.",
	},
	authcore.NotifyVerifyEmail: {
		subject: "Verify your e-mail address",
		intro:   "Confirm this address to finish setting up your account.",
		action:  "Verify e-mail",
		outro:   "The link expires soon. You can request a new one from the sign-in page.",
	},
	authcore.NotifyPasswordReset: {
		subject: "Your password was changed",
		intro:   "The password of your account was just reset and every session was signed out.",
		outro:   "If this was not you, contact an administrator right away.",
	},
}

type message struct {
	subject string
	text    string
	html    string
}

type view struct {
	App    string
	Name   string
	Intro  string
	Action string
	Link   string
	Outro  string
}

var textBody = template.Must(template.New("text").Parse(
	`Hello{{if .Name}} {{.Name}}{{end}},

{{.Intro}}
{{if .Link}}
{{.Action}}: {{.Link}}
{{end}}
{{.Outro}}

{{.App}}
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(
	`<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<p>{{.Intro}}</p>
{{if .Link}}<p><a href="{{.Link}}">{{.Action}}</a></p>{{end}}
<p>{{.Outro}}</p>
<p>{{.App}}</p>
`))

func render(app string, n authcore.Notification) (message, error) {
	c, ok := wordings[n.Kind]
	if !ok {
		return message{}, fmt.Errorf("notify: unknown notification kind %q", n.Kind)
	}
	v := view{App: app, Name: n.Name, Intro: c.intro, Action: c.action, Link: n.Link, Outro: c.outro}

	var text, html bytes.Buffer
	if err := textBody.Execute(&text, v); err != nil {
		return message{}, err
	}
	if err := htmlBody.Execute(&html, v); err != nil {
		return message{}, err
	}
	return message{
		subject: fmt.Sprintf("[%s] %s", app, c.subject),
		text:    text.String(),
		html:    html.String(),
	}, nil
}
