package gateway

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"time"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// parsedContent holds the text pulled out of a wire message
type parsedContent struct {
	body        string
	attachments string
}

// extractContent extracts the text content from an email message.
// For multipart messages it collects text/plain body parts and the
// content of text attachments separately.
func extractContent(msg *mail.Message) (*parsedContent, error) {
	contentType := msg.Header.Get("Content-Type")

	// If it's not a multipart message, just return the body
	if !strings.Contains(strings.ToLower(contentType), "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return nil, err
		}
		return &parsedContent{body: string(bodyBytes)}, nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return nil, err
		}
		return &parsedContent{body: string(bodyBytes)}, nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return nil, err
		}
		return &parsedContent{body: string(bodyBytes)}, nil
	}

	mr := multipart.NewReader(msg.Body, boundary)

	var body, attachments bytes.Buffer

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever was readable before the bad part.
			break
		}

		partType := strings.ToLower(part.Header.Get("Content-Type"))

		switch {
		case part.FileName() != "" && strings.Contains(partType, "text/"):
			// Text attachments (invoices exported as .txt, .csv) feed the
			// attribute extractor.
			partBytes, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			attachments.Write(partBytes)
			attachments.WriteString("\n")
		case part.FileName() == "" && strings.Contains(partType, "text/plain"):
			partBytes, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			body.Write(partBytes)
			body.WriteString("\n")
		case strings.Contains(partType, "multipart/"):
			// Nested multipart messages are skipped rather than recursed into.
			continue
		}
	}

	if body.Len() == 0 && attachments.Len() == 0 {
		return &parsedContent{body: "[No text content found in multipart message]"}, nil
	}

	return &parsedContent{
		body:        body.String(),
		attachments: attachments.String(),
	}, nil
}

// decodeEncodedHeader decodes RFC 2047 encoded-word headers
func decodeEncodedHeader(value string) (string, error) {
	dec := new(mime.WordDecoder)
	return dec.DecodeHeader(value)
}

// rawFromWire parses a wire-format message into the pipeline's raw
// input. The parsed mail message is returned alongside so callers can
// reuse its headers.
func rawFromWire(data []byte) (*core.RawMessage, *mail.Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}

	content, err := extractContent(msg)
	if err != nil {
		return nil, nil, err
	}

	from := msg.Header.Get("From")
	if decoded, err := decodeEncodedHeader(from); err == nil {
		from = decoded
	}

	subject := msg.Header.Get("Subject")
	if decoded, err := decodeEncodedHeader(subject); err == nil {
		subject = decoded
	}

	var receivedAt time.Time
	if date, err := msg.Header.Date(); err == nil {
		receivedAt = date
	}

	return &core.RawMessage{
		From:           from,
		Subject:        subject,
		Body:           content.body,
		AttachmentText: content.attachments,
		ReceivedAt:     receivedAt,
	}, msg, nil
}
