package bridge

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/remotevibe/bridge/internal/agentapi"
)

// AttachmentKind classifies a Discord attachment by MIME type.
type AttachmentKind int

const (
	AttachmentAudio AttachmentKind = iota
	AttachmentFile                 // image/*, application/pdf — forwarded as file parts
	AttachmentText                 // inlined into the prompt
	AttachmentOther                // ignored
)

// Attachment is the subset of a Discord attachment the classifier needs.
type Attachment struct {
	Filename string
	MIME     string
	URL      string
}

var inlineableMIMEs = map[string]bool{
	"application/json":       true,
	"application/xml":        true,
	"application/javascript": true,
	"application/typescript": true,
	"application/yaml":       true,
	"application/toml":       true,
}

// ClassifyAttachment buckets an attachment by MIME type.
func ClassifyAttachment(a Attachment) AttachmentKind {
	switch {
	case strings.HasPrefix(a.MIME, "audio/"):
		return AttachmentAudio
	case strings.HasPrefix(a.MIME, "image/"), a.MIME == "application/pdf":
		return AttachmentFile
	case strings.HasPrefix(a.MIME, "text/"), inlineableMIMEs[a.MIME]:
		return AttachmentText
	default:
		return AttachmentOther
	}
}

// ToInputPart converts an image/pdf attachment into a file input part for
// the Agent.
func (a Attachment) ToInputPart() agentapi.InputPart {
	return agentapi.InputPart{Type: "file", MIME: a.MIME, Filename: a.Filename, URL: a.URL}
}

// FetchInline downloads a text-like attachment and wraps it in an
// <attachment> envelope for inlining into the prompt text.
func FetchInline(httpClient *http.Client, a Attachment) (string, error) {
	resp, err := httpClient.Get(a.URL)
	if err != nil {
		return "", fmt.Errorf("bridge: fetch attachment %s: %w", a.Filename, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("bridge: read attachment %s: %w", a.Filename, err)
	}

	return fmt.Sprintf("<attachment filename=%q mime=%q>%s</attachment>", a.Filename, a.MIME, body), nil
}
