package imapkit

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"regexp"
	"strconv"
	"strings"

	"github.com/oakmoss/imapkit/internal/charset"
)

// maxPartBytes caps decoded bytes read per part, guarding against
// pathological or hostile message structures.
const maxPartBytes = 32 * 1024 * 1024

// parsedBody is the result of walking a message's MIME structure.
type parsedBody struct {
	root        *BodyPart
	bodies      map[string]string // "text", "html"
	attachments []*BodyPart
}

// parseMIME walks raw (the full RFC 822 source, headers included) and
// produces the body-part tree, the bodies map, and the attachment list.
// Nested multipart parts are walked recursively with dotted part numbers
// "1", "1.1", "1.2", "2", ….
func parseMIME(raw []byte, topHeaders Headers) (*parsedBody, error) {
	pb := &parsedBody{bodies: make(map[string]string)}

	contentType := topHeaders.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	cte := topHeaders.Get("Content-Transfer-Encoding")

	_, bodyRaw, found := cutHeaderBody(raw)
	if !found {
		bodyRaw = raw
	}

	root, err := walkPart("", contentType, cte, "", nil, bodyRaw, pb)
	if err != nil {
		return nil, err
	}
	pb.root = root

	if inline := collectInline(root); len(inline) > 0 {
		if html, ok := pb.bodies["html"]; ok {
			pb.bodies["html"] = rewriteCIDs(html, inline)
		}
	}
	return pb, nil
}

// cutHeaderBody splits raw RFC 822 source at the first blank line.
func cutHeaderBody(raw []byte) (header, body []byte, found bool) {
	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return raw[:idx], raw[idx+4:], true
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return raw[:idx], raw[idx+2:], true
	}
	return raw, nil, false
}

func walkPart(partNumber, contentTypeHeader, cte, dispositionHeader string, params map[string]string, body []byte, pb *parsedBody) (*BodyPart, error) {
	mediaType, ctParams, err := mime.ParseMediaType(contentTypeHeader)
	if err != nil {
		mediaType = "text/plain"
		ctParams = nil
	}
	if params == nil {
		params = ctParams
	}

	disposition, filename := parseDisposition(dispositionHeader, ctParams)

	part := &BodyPart{
		PartNumber:  partNumber,
		ContentType: strings.ToLower(mediaType),
		Params:      params,
		Disposition: disposition,
		Filename:    filename,
		Name:        decodeHeaderWord(ctParams["name"]),
		Encoding:    strings.ToLower(strings.TrimSpace(cte)),
		Charset:     ctParams["charset"],
		raw:         body,
		Size:        len(body),
	}

	if strings.HasPrefix(part.ContentType, "multipart/") {
		return walkMultipart(part, ctParams["boundary"], body, pb)
	}

	if part.IsAttachment() {
		pb.attachments = append(pb.attachments, part)
		return part, nil
	}

	decoded, err := decodeTransferEncoding(body, cte)
	if err != nil {
		return nil, newContentTypeError(partNumber, err)
	}
	text, err := charset.Decode(part.Charset, decoded)
	if err != nil {
		text = string(decoded)
	}

	switch part.ContentType {
	case "text/html":
		pb.bodies["html"] = text
		if _, ok := pb.bodies["text"]; !ok {
			pb.bodies["text"] = stripHTMLTags(text)
		}
	default:
		pb.bodies["text"] = text
	}
	return part, nil
}

func walkMultipart(part *BodyPart, boundary string, body []byte, pb *parsedBody) (*BodyPart, error) {
	if boundary == "" {
		return part, nil
	}
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	childIdx := 0
	for {
		mp, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		childIdx++
		childNumber := strconv.Itoa(childIdx)
		if part.PartNumber != "" {
			childNumber = part.PartNumber + "." + childNumber
		}

		data, _ := io.ReadAll(io.LimitReader(mp, maxPartBytes))
		childCT := mp.Header.Get("Content-Type")
		if childCT == "" {
			childCT = "text/plain"
		}
		childCTE := mp.Header.Get("Content-Transfer-Encoding")
		childDisp := mp.Header.Get("Content-Disposition")

		child, err := walkPart(childNumber, childCT, childCTE, childDisp, nil, data, pb)
		if err != nil {
			continue
		}
		child.ContentID = normalizeContentID(mp.Header.Get("Content-ID"))
		part.Children = append(part.Children, child)
	}
	return part, nil
}

func parseDisposition(header string, ctParams map[string]string) (disposition, filename string) {
	if header != "" {
		disp, params, err := mime.ParseMediaType(header)
		if err == nil {
			disposition = strings.ToLower(disp)
			if fn, ok := params["filename"]; ok {
				filename = decodeHeaderWord(fn)
			}
		}
	}
	if filename == "" {
		if name, ok := ctParams["name"]; ok {
			filename = decodeHeaderWord(name)
		}
	}
	return disposition, filename
}

func decodeHeaderWord(raw string) string {
	decoded, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// decodeTransferEncoding decodes body per Content-Transfer-Encoding: 7bit,
// 8bit, and binary pass through unchanged; quoted-printable and base64 are
// decoded.
func decodeTransferEncoding(body []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		out := make([]byte, base64.StdEncoding.DecodedLen(len(body)))
		n, err := base64.StdEncoding.Decode(out, bytes.TrimSpace(body))
		if err != nil {
			// Some servers wrap base64 with embedded newlines already
			// stripped by the transport; fall back to a streaming
			// decoder that tolerates those more gracefully.
			decoded, derr := io.ReadAll(base64.NewDecoder(base64.StdEncoding, bytes.NewReader(body)))
			if derr != nil {
				return nil, fmt.Errorf("mimewalk: base64 decode: %w", err)
			}
			return decoded, nil
		}
		return out[:n], nil
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("mimewalk: quoted-printable decode: %w", err)
		}
		return decoded, nil
	default:
		return body, nil
	}
}

var (
	reStyle   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reScript  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reHTMLTag = regexp.MustCompile(`<[^>]*>`)
	reSpace   = regexp.MustCompile(`\s+`)
	reCID     = regexp.MustCompile(`(?i)cid:(<[^>]+>|[^"')\s\]>]+)`)
)

// stripHTMLTags produces a plain-text fallback body from HTML when no
// text/plain alternative was present.
func stripHTMLTags(html string) string {
	text := reStyle.ReplaceAllString(html, " ")
	text = reScript.ReplaceAllString(text, " ")
	text = reHTMLTag.ReplaceAllString(text, " ")
	text = strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&apos;", "'", "&#39;", "'", "&nbsp;", " ",
	).Replace(text)
	text = reSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// collectInline gathers every part with a non-empty Content-ID, keyed by
// that id, for multipart/related cid: resolution.
func collectInline(part *BodyPart) map[string]*BodyPart {
	out := make(map[string]*BodyPart)
	var walk func(*BodyPart)
	walk = func(p *BodyPart) {
		if p.ContentID != "" {
			out[p.ContentID] = p
		}
		for _, c := range p.Children {
			walk(c)
		}
	}
	walk(part)
	if len(out) == 0 {
		return nil
	}
	return out
}

// rewriteCIDs replaces cid: references in HTML with data: URIs resolved
// against inline, for standalone rendering outside a mail client.
func rewriteCIDs(html string, inline map[string]*BodyPart) string {
	return reCID.ReplaceAllStringFunc(html, func(match string) string {
		subs := reCID.FindStringSubmatch(match)
		if len(subs) < 2 {
			return match
		}
		part, ok := inline[normalizeContentID(subs[1])]
		if !ok {
			return match
		}
		decoded, err := decodeTransferEncoding(part.raw, part.Encoding)
		if err != nil {
			return match
		}
		ct := part.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(decoded)
	})
}
