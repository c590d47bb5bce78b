package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
)

type mailTemplate struct {
	Subject string
	Body    string
}

const layout = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; font-size: 14px; color: #222;">
%s
<p style="color: #888; font-size: 12px;">BRUSS Intranet</p>
</body>
</html>`

var mailTemplates = map[domain.MailKind]map[domain.Language]mailTemplate{
	domain.MailCreateUser: {
		domain.LanguagePolish: {
			Subject: "BRUSS - dane konta",
			Body: `<p>Dzień dobry {{.FullName}},</p>
<p>utworzono dla Ciebie konto w systemie nadgodzin.</p>
<p>Login: <b>{{.Username}}</b><br>Hasło: <b>{{.Password}}</b></p>
<p>Zmień hasło po pierwszym logowaniu.</p>`,
		},
		domain.LanguageEnglish: {
			Subject: "BRUSS - account details",
			Body: `<p>Hello {{.FullName}},</p>
<p>an account has been created for you in the overtime system.</p>
<p>Username: <b>{{.Username}}</b><br>Password: <b>{{.Password}}</b></p>
<p>Please change the password after the first login.</p>`,
		},
	},
	domain.MailOvertimePending: {
		domain.LanguagePolish: {
			Subject: "Nowe zlecenie nadgodzin {{.InternalID}} czeka na zatwierdzenie",
			Body: `<p>Dzień dobry {{.RecipientName}},</p>
<p>{{.ActorName}} złożył(a) zlecenie nadgodzin <b>{{.InternalID}}</b> ({{.Hours}} h, {{.WorkDate}}).</p>
<p><a href="{{.Link}}">Otwórz zlecenie</a></p>`,
		},
		domain.LanguageEnglish: {
			Subject: "Overtime request {{.InternalID}} awaits your approval",
			Body: `<p>Hello {{.RecipientName}},</p>
<p>{{.ActorName}} submitted overtime request <b>{{.InternalID}}</b> ({{.Hours}} h, {{.WorkDate}}).</p>
<p><a href="{{.Link}}">Open the request</a></p>`,
		},
	},
	domain.MailOvertimeApproved: {
		domain.LanguagePolish: {
			Subject: "Zlecenie nadgodzin {{.InternalID}} zostało zatwierdzone",
			Body: `<p>Dzień dobry {{.RecipientName}},</p>
<p>Twoje zlecenie nadgodzin <b>{{.InternalID}}</b> ({{.Hours}} h, {{.WorkDate}}) zostało zatwierdzone przez {{.ActorName}}.</p>
<p><a href="{{.Link}}">Otwórz zlecenie</a></p>`,
		},
		domain.LanguageEnglish: {
			Subject: "Overtime request {{.InternalID}} approved",
			Body: `<p>Hello {{.RecipientName}},</p>
<p>your overtime request <b>{{.InternalID}}</b> ({{.Hours}} h, {{.WorkDate}}) was approved by {{.ActorName}}.</p>
<p><a href="{{.Link}}">Open the request</a></p>`,
		},
	},
	domain.MailOvertimeRejected: {
		domain.LanguagePolish: {
			Subject: "Zlecenie nadgodzin {{.InternalID}} zostało odrzucone",
			Body: `<p>Dzień dobry {{.RecipientName}},</p>
<p>Twoje zlecenie nadgodzin <b>{{.InternalID}}</b> zostało odrzucone przez {{.ActorName}}.</p>
{{if .Reason}}<p>Powód: {{.Reason}}</p>{{end}}
<p><a href="{{.Link}}">Otwórz zlecenie</a></p>`,
		},
		domain.LanguageEnglish: {
			Subject: "Overtime request {{.InternalID}} rejected",
			Body: `<p>Hello {{.RecipientName}},</p>
<p>your overtime request <b>{{.InternalID}}</b> was rejected by {{.ActorName}}.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
<p><a href="{{.Link}}">Open the request</a></p>`,
		},
	},
	domain.MailOvertimeCancelled: {
		domain.LanguagePolish: {
			Subject: "Zlecenie nadgodzin {{.InternalID}} zostało anulowane",
			Body: `<p>Dzień dobry {{.RecipientName}},</p>
<p>Twoje zlecenie nadgodzin <b>{{.InternalID}}</b> zostało anulowane przez {{.ActorName}}.</p>
{{if .Reason}}<p>Powód: {{.Reason}}</p>{{end}}
<p><a href="{{.Link}}">Otwórz zlecenie</a></p>`,
		},
		domain.LanguageEnglish: {
			Subject: "Overtime request {{.InternalID}} cancelled",
			Body: `<p>Hello {{.RecipientName}},</p>
<p>your overtime request <b>{{.InternalID}}</b> was cancelled by {{.ActorName}}.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
<p><a href="{{.Link}}">Open the request</a></p>`,
		},
	},
	domain.MailOvertimeCorrected: {
		domain.LanguagePolish: {
			Subject: "Zlecenie nadgodzin {{.InternalID}} zostało poprawione",
			Body: `<p>Dzień dobry {{.RecipientName}},</p>
<p>{{.ActorName}} poprawił(a) Twoje zlecenie nadgodzin <b>{{.InternalID}}</b> ({{.Hours}} h, {{.WorkDate}}).</p>
<p><a href="{{.Link}}">Otwórz zlecenie</a></p>`,
		},
		domain.LanguageEnglish: {
			Subject: "Overtime request {{.InternalID}} corrected",
			Body: `<p>Hello {{.RecipientName}},</p>
<p>{{.ActorName}} corrected your overtime request <b>{{.InternalID}}</b> ({{.Hours}} h, {{.WorkDate}}).</p>
<p><a href="{{.Link}}">Open the request</a></p>`,
		},
	},
}

type compiled struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

var compiledTemplates = compileTemplates()

func compileTemplates() map[domain.MailKind]map[domain.Language]compiled {
	out := make(map[domain.MailKind]map[domain.Language]compiled, len(mailTemplates))
	for kind, byLang := range mailTemplates {
		out[kind] = make(map[domain.Language]compiled, len(byLang))
		for lang, t := range byLang {
			name := fmt.Sprintf("%s_%s", kind, lang)
			out[kind][lang] = compiled{
				subject: texttemplate.Must(texttemplate.New(name).Parse(t.Subject)),
				body:    htmltemplate.Must(htmltemplate.New(name).Parse(fmt.Sprintf(layout, t.Body))),
			}
		}
	}
	return out
}

type Rendered struct {
	Subject  string
	HTMLBody string
}

// Render 是纯函数：同样的 kind、语言和数据总是得到同样的结果。未知语言回退到英文。
func Render(kind domain.MailKind, lang domain.Language, data any) (Rendered, error) {
	byLang, ok := compiledTemplates[kind]
	if !ok {
		return Rendered{}, fmt.Errorf("不支持的邮件类型: %s", kind)
	}
	t, ok := byLang[lang]
	if !ok {
		t = byLang[domain.LanguageEnglish]
	}

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Rendered{}, err
	}
	if err := t.body.Execute(&body, data); err != nil {
		return Rendered{}, err
	}

	return Rendered{Subject: subject.String(), HTMLBody: body.String()}, nil
}
