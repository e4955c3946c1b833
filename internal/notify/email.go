// Package notify renders and delivers transactional email off the request path.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
)

// Kind selects an email template.
type Kind string

const (
	KindWelcome      Kind = "welcome"
	KindLoginAlert   Kind = "login_alert"
	KindResetCode    Kind = "reset_code"
	KindItemReported Kind = "item_reported"
	KindClaimStarted Kind = "claim_started"
)

// Email is a queued notification: a template kind, its recipient and template fields.
type Email struct {
	Kind   Kind
	To     string
	Name   string
	Fields map[string]string
}

// Message is a rendered email ready for a Sender.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

const layout = `<html><body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
<div style="background-color: #003898; padding: 20px; text-align: center;"><h1 style="color: #fff; margin: 0;">FindIt</h1></div>
<div style="padding: 30px; background-color: #f9f9f9; border: 1px solid #e0e0e0; border-top: none;">
{{template "body" .}}
<hr style="border: none; border-top: 1px solid #e0e0e0; margin: 20px 0;" />
<p style="font-size: 12px; color: #999;">This is an automated message from FindIt. Please do not reply.</p>
</div></body></html>`

var bodies = map[Kind]struct {
	subject string
	body    string
}{
	KindWelcome: {"Welcome to FindIt", `<h2>Welcome, {{.Name}}!</h2>
<p>Your account has been created. You can now report lost or found items and help others reunite with their belongings.</p>
<p>If you did not create this account, please contact support.</p>`},
	KindLoginAlert: {"Security Alert: New login to FindIt", `<h2>Security Alert</h2>
<p>Hello <strong>{{.Name}}</strong>,</p>
<p>We noticed a successful login to your FindIt account just now. If this was you, no action is needed.</p>
<p>If you did <strong>not</strong> sign in, change your password immediately.</p>`},
	KindResetCode: {"Your FindIt Reset Code", `<h2>Password Reset Code</h2>
<p>You requested a password reset. Use the code below. It expires in <strong>15 minutes</strong>.</p>
<p style="text-align: center; font-size: 40px; font-weight: bold; letter-spacing: 12px; color: #003898;">{{.Fields.code}}</p>
<p>If you did not request this, you can safely ignore this email.</p>`},
	KindItemReported: {"Item reported on FindIt", `<h2>Item reported</h2>
<p>Hello <strong>{{.Name}}</strong>,</p>
<p>Your item &quot;{{.Fields.title}}&quot; has been reported (ID: {{.Fields.item_id}}). Others can now view it and claim it if it belongs to them.</p>`},
	KindClaimStarted: {"Someone claimed your item on FindIt", `<h2>New claim</h2>
<p>Hello <strong>{{.Name}}</strong>,</p>
<p>{{.Fields.claimer}} has started a claim on &quot;{{.Fields.title}}&quot;. Open FindIt to review it and request identity verification.</p>`},
}

var templates = func() map[Kind]*template.Template {
	out := make(map[Kind]*template.Template, len(bodies))
	for k, b := range bodies {
		t := template.Must(template.New(string(k)).Parse(layout))
		out[k] = template.Must(t.New("body").Parse(b.body))
	}
	return out
}()

// Render produces the subject and HTML body for e. An empty name renders as "User".
func Render(e Email) (Message, error) {
	t, ok := templates[e.Kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown email kind %q", e.Kind)
	}
	if e.Name == "" {
		e.Name = "User"
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, string(e.Kind), e); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", e.Kind, err)
	}
	return Message{To: e.To, Subject: bodies[e.Kind].subject, HTML: buf.String()}, nil
}
