package notification

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/hanna-agency/workshop-registration/payment"
	"github.com/hanna-agency/workshop-registration/registration"
)

//go:embed templates
var templates embed.FS

var subjects = map[EmailType]string{
	EMAIL_CONFIRMATION:     "You're in! Your workshop seat is confirmed",
	EMAIL_REMINDER_24H:     "The workshop starts tomorrow",
	EMAIL_REMINDER_1H:      "We start in one hour",
	EMAIL_ACCESS_LINK:      "Your workshop access link",
	EMAIL_RECORDING:        "The workshop recording is ready",
	EMAIL_FOLLOW_UP:        "Thanks for joining the workshop",
	EMAIL_PROFILE_REMINDER: "One more step: tell us about yourself",
}

var templateFuncs = map[string]any{
	"firstName": firstName,
	"amount": func(reg registration.Registration) string {
		if reg.AmountPaid == nil {
			return ""
		}
		return payment.FormatMajorUnits(reg.AmountPaid) + " " + reg.AmountPaid.Currency().Code
	},
}

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.New("html").Funcs(templateFuncs).ParseFS(templates, "templates/*.html.tmpl"))
	textTemplates = texttemplate.Must(texttemplate.New("text").Funcs(templateFuncs).ParseFS(templates, "templates/*.txt.tmpl"))
)

type renderedEmail struct {
	Subject  string
	HTMLBody string
	TextBody string
}

func render(emailType EmailType, reg registration.Registration, vars map[string]any) (renderedEmail, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	data := map[string]any{
		"Registration": reg,
		"Vars":         vars,
	}

	var htmlBuf bytes.Buffer
	err := htmlTemplates.ExecuteTemplate(&htmlBuf, fmt.Sprintf("%s.html.tmpl", emailType), data)
	if err != nil {
		return renderedEmail{}, NewFailedToRenderError(fmt.Sprintf("Failed to render html body for %q", emailType), err)
	}

	var textBuf bytes.Buffer
	err = textTemplates.ExecuteTemplate(&textBuf, fmt.Sprintf("%s.txt.tmpl", emailType), data)
	if err != nil {
		return renderedEmail{}, NewFailedToRenderError(fmt.Sprintf("Failed to render text body for %q", emailType), err)
	}

	return renderedEmail{
		Subject:  subjects[emailType],
		HTMLBody: htmlBuf.String(),
		TextBody: textBuf.String(),
	}, nil
}

func firstName(fullName string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(fullName), " ")
	if first == "" {
		return "there"
	}
	return first
}
