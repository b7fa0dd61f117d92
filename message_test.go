package imapkit

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestNewMessagePlainTextFetch(t *testing.T) {
	raw := "Subject: Nuu\r\nFrom: from@here.com\r\nTo: to@here.com\r\n\r\nHi"

	msg, err := newMessage(1, 1, []string{`\Seen`}, []byte(raw), nil, false)
	if err != nil {
		t.Fatalf("newMessage: %v", err)
	}

	if msg.Subject != "Nuu" {
		t.Errorf("Subject = %q, want Nuu", msg.Subject)
	}
	if msg.TextBody() != "Hi" {
		t.Errorf("TextBody = %q, want Hi", msg.TextBody())
	}
	if msg.HasHTMLBody() {
		t.Error("HasHTMLBody = true, want false")
	}
	if msg.HasDate {
		t.Error("HasDate = true, want false (no Date header)")
	}
	if len(msg.From) != 1 || msg.From[0].Mailbox != "from" || msg.From[0].Host != "here.com" {
		t.Errorf("From = %+v", msg.From)
	}
	if len(msg.To) != 1 || msg.To[0].Mailbox != "to" || msg.To[0].Host != "here.com" {
		t.Errorf("To = %+v", msg.To)
	}
}

func TestNewMessageAttachmentWithNoDisposition(t *testing.T) {
	content := []byte("pretend spreadsheet bytes")
	b64 := base64.StdEncoding.EncodeToString(content)

	// RFC 2047 encoded Czech filename, no Content-Disposition header at all.
	encodedName := "=?UTF-8?B?UHJvc3TFmWVubyAyMDE0IHBvc2xlZG7DrSB2b2xuw6kgdGVybcOtbnkueGxz?="

	raw := strings.Join([]string{
		"Subject: attachment test",
		"Content-Type: multipart/mixed; boundary=XBOUNDARY",
		"",
		"--XBOUNDARY",
		`Content-Type: application/vnd.ms-excel; name="` + encodedName + `"`,
		"Content-Transfer-Encoding: base64",
		"",
		b64,
		"--XBOUNDARY--",
		"",
	}, "\r\n")

	msg, err := newMessage(1, 1, nil, []byte(raw), nil, false)
	if err != nil {
		t.Fatalf("newMessage: %v", err)
	}

	if len(msg.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.Disposition() != "" {
		t.Errorf("Disposition = %q, want empty", att.Disposition())
	}
	if att.ContentIDRaw() != "" {
		t.Errorf("ContentID = %q, want empty", att.ContentIDRaw())
	}
	if att.Extension() != "xls" {
		t.Errorf("Extension = %q, want xls", att.Extension())
	}
	if !strings.Contains(att.Filename(), "2014") {
		t.Errorf("Filename = %q, want decoded UTF-8 name", att.Filename())
	}
	got, err := att.Content()
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Content = %q, want %q", got, content)
	}
}

func TestBodyPartClassificationNoOverlap(t *testing.T) {
	raw := strings.Join([]string{
		"Content-Type: multipart/alternative; boundary=B",
		"",
		"--B",
		"Content-Type: text/plain",
		"",
		"plain text",
		"--B",
		"Content-Type: text/html",
		"",
		"<p>html</p>",
		"--B--",
		"",
	}, "\r\n")

	msg, err := newMessage(1, 1, nil, []byte(raw), nil, false)
	if err != nil {
		t.Fatalf("newMessage: %v", err)
	}
	if len(msg.Attachments) != 0 {
		t.Errorf("got %d attachments, want 0", len(msg.Attachments))
	}
	if msg.TextBody() != "plain text" {
		t.Errorf("TextBody = %q", msg.TextBody())
	}
	if !strings.Contains(msg.HTMLBody(), "html") {
		t.Errorf("HTMLBody = %q", msg.HTMLBody())
	}
}
