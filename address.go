package imapkit

import (
	"net/mail"
	"strings"

	"github.com/oakmoss/imapkit/internal/wire"
)

// Address is one parsed RFC 5322 mailbox: a decoded personal name plus the
// mailbox-local-part and host. List ordering preserves server order.
type Address struct {
	Name    string
	Mailbox string
	Host    string
}

// String renders the address in "Name <mailbox@host>" form, or bare
// "mailbox@host" when there is no personal name.
func (a Address) String() string {
	addr := a.Mailbox
	if a.Host != "" {
		addr += "@" + a.Host
	}
	if a.Name == "" {
		return addr
	}
	return a.Name + " <" + addr + ">"
}

// ParseAddressList parses a raw, already RFC-2047-decoded header value (a
// From/To/Cc/Bcc/Reply-To header) into an ordered Address list. Grouped
// forms ("group: a@b, c@d;") are flattened to their member addresses, per
// net/mail's own handling of RFC 5322 groups.
func ParseAddressList(raw string) ([]Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := mail.ParseAddressList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Address, 0, len(parsed))
	for _, a := range parsed {
		out = append(out, addressFromMail(a))
	}
	return out, nil
}

func addressFromMail(a *mail.Address) Address {
	local, host, _ := strings.Cut(a.Address, "@")
	return Address{Name: a.Name, Mailbox: local, Host: host}
}

// addressListFromEnvelope decodes the FETCH ENVELOPE address-list shape:
// a wire.Token list of (name adl mailbox host) 4-tuples, per RFC 3501
// §7.4.2. A NIL tuple slot is an empty string.
func addressListFromEnvelope(tok wire.Token) []Address {
	if tok.Kind != wire.KindList {
		return nil
	}
	out := make([]Address, 0, len(tok.List))
	for _, item := range tok.List {
		if item.Kind != wire.KindList || len(item.List) < 4 {
			continue
		}
		out = append(out, Address{
			Name:    envelopeField(item.List[0]),
			Mailbox: envelopeField(item.List[2]),
			Host:    envelopeField(item.List[3]),
		})
	}
	return out
}

func envelopeField(t wire.Token) string {
	if t.Kind == wire.KindString {
		return string(t.Str)
	}
	if t.Kind == wire.KindAtom {
		return t.Atom
	}
	return ""
}
