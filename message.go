package webwindow

import "strings"

// ReadySignal is the exact message a page posts once its bridge script has run.
const ReadySignal = "WebViewReady"

const (
	envelopeOpen  = "{{"
	envelopeClose = "}}"
)

// MessageKind classifies a message received from the page.
type MessageKind int

const (
	MessageText MessageKind = iota
	MessageReady
	MessageFunction
)

func (k MessageKind) String() string {
	switch k {
	case MessageReady:
		return "ready"
	case MessageFunction:
		return "function"
	default:
		return "text"
	}
}

// Message is a decoded page message. Text always holds the raw message;
// Name and Args are only set for MessageFunction.
type Message struct {
	Kind MessageKind
	Text string
	Name string
	Args string
}

// ParseMessage classifies raw page text. A "{{" prefix without a closing
// "}}" is plain text, not an error.
func ParseMessage(raw string) Message {
	if raw == ReadySignal {
		return Message{Kind: MessageReady, Text: raw}
	}
	if rest, ok := strings.CutPrefix(raw, envelopeOpen); ok {
		if name, args, found := strings.Cut(rest, envelopeClose); found {
			return Message{Kind: MessageFunction, Text: raw, Name: name, Args: args}
		}
	}
	return Message{Kind: MessageText, Text: raw}
}

// FunctionCall builds a "{{name}}args" envelope. Args are passed through
// untouched; their encoding is agreed between host and page.
func FunctionCall(name, args string) string {
	return envelopeOpen + name + envelopeClose + args
}

// NormalizeURL adds a scheme to u when it has none: "file://" for drive
// paths such as `C:\dir`, "http://" for everything else.
func NormalizeURL(u string) string {
	if strings.Contains(u, "://") {
		return u
	}
	if len(u) >= 2 && u[1] == ':' {
		return "file://" + u
	}
	return "http://" + u
}
