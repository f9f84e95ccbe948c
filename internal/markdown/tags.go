package markdown

import "encoding/xml"

// Descriptor is the directory/app binding parsed out of a channel topic tag.
type Descriptor struct {
	Directory string `xml:"directory"`
	AppID     string `xml:"app"`
}

type remoteVibeTag struct {
	XMLName   xml.Name `xml:"remote-vibe"`
	Directory string   `xml:"directory"`
	AppID     string   `xml:"app"`
}

// ExtractTags parses a `<remote-vibe><directory>...</directory><app>...</app></remote-vibe>`
// descriptor out of arbitrary surrounding text. Either field may be absent.
// Never panics; a parse failure yields a zero-value Descriptor.
func ExtractTags(topic string) Descriptor {
	start := indexOf(topic, "<remote-vibe>")
	if start < 0 {
		return Descriptor{}
	}
	end := indexOf(topic[start:], "</remote-vibe>")
	if end < 0 {
		return Descriptor{}
	}
	end += start + len("</remote-vibe>")

	var tag remoteVibeTag
	if err := xml.Unmarshal([]byte(topic[start:end]), &tag); err != nil {
		return Descriptor{}
	}
	return Descriptor{Directory: tag.Directory, AppID: tag.AppID}
}

// EncodeTags renders a Descriptor back into the topic tag format, for
// channels the bridge creates itself.
func EncodeTags(d Descriptor) string {
	return "<remote-vibe><directory>" + d.Directory + "</directory><app>" + d.AppID + "</app></remote-vibe>"
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
