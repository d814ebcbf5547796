package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/sekolah-app/sekolah/fs"
)

const emailTemplatesDir = "templates/email"

var (
	templates    map[string]*emailTemplate
	templatesErr error
	tmplInit     sync.Once
)

type (
	emailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// SiteInfo is exposed to every email template next to the message data.
	SiteInfo struct {
		AppName         string
		FrontendBaseURL string
	}

	ContextData struct {
		SiteInfo
		Data interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent and HTMLContent from BodyStr or the named template.
func (m *EmailMessage) Render(site SiteInfo) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if m.TemplateName == "" {
		return nil
	}

	tmplInit.Do(func() { templates, templatesErr = parseTemplates(appfs.FS) })
	if templatesErr != nil {
		return errors.Wrap(templatesErr, "parsing email templates")
	}
	tmpl, ok := templates[m.TemplateName]
	if !ok {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}

	data := ContextData{SiteInfo: site, Data: m.TemplateData}
	if tmpl.text != nil {
		var buff bytes.Buffer
		if err := tmpl.text.Execute(&buff, data); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
		m.TextContent = buff.String()
	}
	if tmpl.html != nil {
		var buff bytes.Buffer
		if err := tmpl.html.Execute(&buff, data); err != nil {
			return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// parseTemplates pairs every `<name>.txt` / `<name>.gohtml` with its `_base` layout.
func parseTemplates(fsys fs.FS) (map[string]*emailTemplate, error) {
	entries, err := fs.ReadDir(fsys, emailTemplatesDir)
	if err != nil {
		return nil, err
	}

	res := make(map[string]*emailTemplate)
	for _, entry := range entries {
		fname := entry.Name()
		ext := path.Ext(fname)
		if entry.IsDir() || strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		tmpl, ok := res[name]
		if !ok {
			tmpl = new(emailTemplate)
			res[name] = tmpl
		}

		base := path.Join(emailTemplatesDir, "_base"+ext)
		fp := path.Join(emailTemplatesDir, fname)
		if ext == ".txt" {
			t, err := texttmpl.ParseFS(fsys, base, fp)
			if err != nil {
				return nil, err
			}
			tmpl.text = t.Option("missingkey=error")
		} else {
			t, err := htmltmpl.ParseFS(fsys, base, fp)
			if err != nil {
				return nil, err
			}
			tmpl.html = t.Option("missingkey=error")
		}
	}
	return res, nil
}
