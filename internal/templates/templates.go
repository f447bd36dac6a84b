// Package templates renders newsletter and welcome emails. Every function is
// a pure function of its inputs.
package templates

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	"strings"
	texttpl "text/template"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
)

// Rendered is a ready-to-send email body.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

const campaignHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body style="margin:0;padding:0;background:#f4f5f7;font-family:Arial,Helvetica,sans-serif;color:#222;">
{{- if .PreviewText}}
<div style="display:none;max-height:0;overflow:hidden;">{{.PreviewText}}</div>
{{- end}}
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;margin:24px 0;">
<tr><td style="background:#1f2a44;color:#ffffff;padding:20px 32px;font-size:20px;font-weight:bold;">E-Cell Newsletter</td></tr>
{{- if .FeaturedImage}}
<tr><td><img src="{{.FeaturedImage}}" alt="{{.Title}}" width="600" style="display:block;width:100%;height:auto;"></td></tr>
{{- end}}
<tr><td style="padding:24px 32px;">
<h1 style="font-size:24px;margin:0 0 16px;">{{.Title}}</h1>
{{.Body}}
</td></tr>
<tr><td style="padding:16px 32px;font-size:12px;color:#777;border-top:1px solid #eee;">
You are receiving this because you subscribed to the E-Cell newsletter.
<a href="{{.UnsubscribeURL}}" style="color:#777;">Unsubscribe</a>
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>
`

const campaignText = `{{.Title}}

{{.Content}}

--
You are receiving this because you subscribed to the E-Cell newsletter.
Unsubscribe: {{.UnsubscribeURL}}
`

const welcomeHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Welcome to the E-Cell Newsletter</title></head>
<body style="font-family:Arial,Helvetica,sans-serif;color:#222;">
<h1 style="font-size:22px;">Welcome, {{.Name}}!</h1>
<p>Thanks for subscribing to the E-Cell newsletter. You will hear from us about upcoming events, startup stories and opportunities.</p>
{{- if .Interests}}
<p>You told us you are interested in:</p>
<ul>
{{- range .Interests}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
<p style="font-size:12px;color:#777;">Changed your mind? <a href="{{.UnsubscribeURL}}">Unsubscribe</a> at any time.</p>
</body>
</html>
`

const welcomeText = `Welcome, {{.Name}}!

Thanks for subscribing to the E-Cell newsletter. You will hear from us about upcoming events, startup stories and opportunities.
{{- if .Interests}}

You told us you are interested in:
{{- range .Interests}}
- {{.}}
{{- end}}
{{- end}}

Changed your mind? Unsubscribe at any time: {{.UnsubscribeURL}}
`

// WelcomeSubject is the subject line of the welcome email.
const WelcomeSubject = "Welcome to the E-Cell Newsletter"

var (
	campaignHTMLTpl = htmltpl.Must(htmltpl.New("campaign_html").Parse(campaignHTML))
	campaignTextTpl = texttpl.Must(texttpl.New("campaign_text").Parse(campaignText))
	welcomeHTMLTpl  = htmltpl.Must(htmltpl.New("welcome_html").Parse(welcomeHTML))
	welcomeTextTpl  = texttpl.Must(texttpl.New("welcome_text").Parse(welcomeText))
)

type campaignVars struct {
	Title          string
	PreviewText    string
	FeaturedImage  string
	Content        string
	Body           htmltpl.HTML
	UnsubscribeURL string
}

type welcomeVars struct {
	Name           string
	Interests      []string
	UnsubscribeURL string
}

// RenderCampaign builds the email for one recipient of c.
func RenderCampaign(c *models.Campaign, unsubscribeURL string) (*Rendered, error) {
	vars := campaignVars{
		Title:          c.Title,
		PreviewText:    c.PreviewText,
		FeaturedImage:  c.FeaturedImage,
		Content:        c.Content,
		Body:           CampaignBody(c),
		UnsubscribeURL: unsubscribeURL,
	}
	html, err := execHTML(campaignHTMLTpl, vars)
	if err != nil {
		return nil, err
	}
	text, err := execText(campaignTextTpl, vars)
	if err != nil {
		return nil, err
	}
	return &Rendered{Subject: c.Subject, HTML: html, Text: text}, nil
}

// CampaignBody is the HTML body block: htmlContent verbatim when set,
// otherwise one escaped paragraph per non-blank line of content.
func CampaignBody(c *models.Campaign) htmltpl.HTML {
	if strings.TrimSpace(c.HTMLContent) != "" {
		return htmltpl.HTML(c.HTMLContent)
	}
	var b strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(c.Content, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString(`<p style="font-size:16px;line-height:1.5;margin:0 0 12px;">`)
		b.WriteString(htmltpl.HTMLEscapeString(line))
		b.WriteString("</p>\n")
	}
	return htmltpl.HTML(b.String())
}

// RenderWelcome builds the one-time welcome email for a new subscriber.
func RenderWelcome(s *models.Subscriber, unsubscribeURL string) (*Rendered, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = "there"
	}
	vars := welcomeVars{Name: name, Interests: s.Interests, UnsubscribeURL: unsubscribeURL}
	html, err := execHTML(welcomeHTMLTpl, vars)
	if err != nil {
		return nil, err
	}
	text, err := execText(welcomeTextTpl, vars)
	if err != nil {
		return nil, err
	}
	return &Rendered{Subject: WelcomeSubject, HTML: html, Text: text}, nil
}

// UnsubscribeURL is the public link that deactivates the token's subscriber.
func UnsubscribeURL(frontendBaseURL, token string) string {
	return strings.TrimRight(frontendBaseURL, "/") + "/newsletter/unsubscribe/" + token
}

// NewsletterURL is the generic newsletter page, used for recipients without a token.
func NewsletterURL(frontendBaseURL string) string {
	return strings.TrimRight(frontendBaseURL, "/") + "/newsletter"
}

func execHTML(t *htmltpl.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func execText(t *texttpl.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
