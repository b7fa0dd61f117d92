package imapkit

import (
	"strings"
	"time"
)

// Message is a materialised RFC 822 message: headers, parsed envelope,
// flags, the MIME body-part tree, extracted bodies, and attachments.
type Message struct {
	UID   uint32
	MSN   uint32
	Flags []string

	Headers Headers

	Subject   string
	Date      time.Time
	HasDate   bool
	From      []Address
	Sender    []Address
	ReplyTo   []Address
	To        []Address
	Cc        []Address
	Bcc       []Address
	InReplyTo string
	MessageID string

	Body        *BodyPart
	Attachments []*Attachment

	// Raw is the full RFC 822 source, present only when the query asked
	// for it (fetchBody with a raw-retention option).
	Raw []byte

	bodies map[string]string
}

// HasFlag reports whether flag is set, comparing standard \Flags
// case-insensitively and keywords case-preserved.
func (m *Message) HasFlag(flag string) bool {
	if strings.HasPrefix(flag, `\`) {
		for _, f := range m.Flags {
			if strings.EqualFold(f, flag) {
				return true
			}
		}
		return false
	}
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// TextBody returns the plain-text body, or "" if the message had none.
func (m *Message) TextBody() string { return m.bodies["text"] }

// HTMLBody returns the HTML body, or "" if the message had none.
func (m *Message) HTMLBody() string { return m.bodies["html"] }

// HasHTMLBody reports whether an HTML alternative was present.
func (m *Message) HasHTMLBody() bool {
	_, ok := m.bodies["html"]
	return ok
}

// newMessage parses raw RFC 822 source (as returned by FETCH BODY[] or
// RFC822) into a Message, classifying body parts into bodies/attachments.
func newMessage(uid, msn uint32, flags []string, raw []byte, store ContentStore, keepRaw bool) (*Message, error) {
	headerBytes, _, found := cutHeaderBody(raw)
	if !found {
		headerBytes = raw
	}
	headers, err := parseHeaders(headerBytes)
	if err != nil {
		return nil, err
	}

	pb, err := parseMIME(raw, headers)
	if err != nil {
		return nil, err
	}

	m := &Message{
		UID:     uid,
		MSN:     msn,
		Flags:   flags,
		Headers: headers,
		Subject: headers.Get("Subject"),
		Body:    pb.root,
		bodies:  pb.bodies,
	}
	if keepRaw {
		m.Raw = raw
	}

	if date, ok := ParseDate(headers.Get("Date")); ok {
		m.Date, m.HasDate = date, true
	}

	m.From, _ = ParseAddressList(headers.Get("From"))
	m.Sender, _ = ParseAddressList(headers.Get("Sender"))
	m.ReplyTo, _ = ParseAddressList(headers.Get("Reply-To"))
	m.To, _ = ParseAddressList(headers.Get("To"))
	m.Cc, _ = ParseAddressList(headers.Get("Cc"))
	m.Bcc, _ = ParseAddressList(headers.Get("Bcc"))
	m.InReplyTo = strings.TrimSpace(headers.Get("In-Reply-To"))
	m.MessageID = strings.TrimSpace(headers.Get("Message-Id"))

	for _, part := range pb.attachments {
		m.Attachments = append(m.Attachments, newAttachment(uid, part, store))
	}

	return m, nil
}
