package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/classcue/fs"
)

const emailTemplatesDir = "templates/email"

var emailTemplates = struct {
	sync.RWMutex
	text map[string]*texttmpl.Template
	html map[string]*htmltmpl.Template
}{}

type (
	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // plain text body, used instead of the text template
		Attachments []Attachment

		// rendered from templates/email/<TemplateName>.{txt,gohtml}
		TemplateName string
		TemplateData interface{}
		TextContent  string
		HTMLContent  string

		FrontendBaseURL string
	}

	// templateContext is what email templates are executed with.
	templateContext struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent and HTMLContent. A template missing for one of them leaves it empty.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	emailTemplates.RLock()
	txt, html := emailTemplates.text[m.TemplateName], emailTemplates.html[m.TemplateName]
	emailTemplates.RUnlock()

	data := templateContext{FrontendBaseURL: m.FrontendBaseURL, Data: m.TemplateData}
	var buf bytes.Buffer
	if txt != nil && m.BodyStr == "" {
		if err := txt.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
		m.TextContent = buf.String()
		buf.Reset()
	}
	if html != nil {
		if err := html.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// Attach adds the content of `r` as an attachment; the content type is sniffed when not given.
func (m *EmailMessage) Attach(r io.Reader, filename string, contentType ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}
	at := Attachment{
		Content:     bytes.NewBufferString(base64.StdEncoding.EncodeToString(content)),
		ContentType: http.DetectContentType(content),
		Filename:    filename,
	}
	if len(contentType) > 0 && contentType[0] != "" {
		at.ContentType = contentType[0]
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// Sendable tells whether a rendered message has someone to go to and something to say.
func (m *EmailMessage) Sendable() bool {
	return m.HasRecipients() && (m.HasContent() || m.HasAttachments())
}

// ParseEmailTemplates parses the embedded email templates once at start up. Every template is parsed together
// with the "_base" layout of its kind. With `strict`, a missing key fails the rendering.
func ParseEmailTemplates(logger Logger, strict bool) {
	text := make(map[string]*texttmpl.Template)
	html := make(map[string]*htmltmpl.Template)
	option := "missingkey=default"
	if strict {
		option = "missingkey=error"
	}

	entries, err := fs.ReadDir(appfs.FS, emailTemplatesDir)
	if err != nil {
		logger.Error("core.ParseEmailTemplates: "+err.Error(), err)
	}
	for _, e := range entries {
		fname := e.Name()
		if e.IsDir() || strings.HasPrefix(fname, "_") {
			continue
		}
		ext := path.Ext(fname)
		name := strings.TrimSuffix(fname, ext)
		files := []string{path.Join(emailTemplatesDir, "_base"+ext), path.Join(emailTemplatesDir, fname)}

		switch ext {
		case ".txt":
			tmpl, err := texttmpl.ParseFS(appfs.FS, files...)
			if err != nil {
				logger.Error("core.ParseEmailTemplates("+fname+"): "+err.Error(), err)
				continue
			}
			text[name] = tmpl.Option(option)
		case ".gohtml":
			tmpl, err := htmltmpl.ParseFS(appfs.FS, files...)
			if err != nil {
				logger.Error("core.ParseEmailTemplates("+fname+"): "+err.Error(), err)
				continue
			}
			html[name] = tmpl.Option(option)
		}
	}

	emailTemplates.Lock()
	emailTemplates.text, emailTemplates.html = text, html
	emailTemplates.Unlock()
}
