package normalizer

import (
	"strings"

	"github.com/telhawk-systems/flowhook/internal/models"
)

// Session key prefixes. The discriminator is appended verbatim.
const (
	ChatwootSessionPrefix  = "chatwoot_conv_"
	DialogySessionPrefix   = "dialogy_conv_"
	EvolutionSessionPrefix = "evolution_jid_"
)

// chatwootPayload is the subset of a Chatwoot message_created webhook we read.
type chatwootPayload struct {
	Event          string
	MessageType    string
	Content        string
	ConversationID string
	HasID          bool
}

func parseChatwoot(root Object) chatwootPayload {
	var p chatwootPayload
	p.Event, _ = root.Text("event")
	p.MessageType, _ = root.Text("message_type")
	p.Content, _ = root.Text("content")
	p.ConversationID, p.HasID = root.Object("conversation").ID("id")
	return p
}

// ChatwootMatcher claims incoming Chatwoot messages.
type ChatwootMatcher struct{}

func (ChatwootMatcher) Provider() models.Provider { return models.ProviderChatwoot }

func (ChatwootMatcher) Match(root Object) (Match, bool) {
	p := parseChatwoot(root)
	if p.Event != "message_created" || !p.HasID || p.MessageType != "incoming" {
		return Match{}, false
	}
	msg := strings.TrimSpace(p.Content)
	return Match{
		Provider:   models.ProviderChatwoot,
		SessionKey: ChatwootSessionPrefix + p.ConversationID,
		Message:    &msg,
	}, true
}

type dialogyPayload struct {
	Event          string
	ConversationID string
	HasID          bool
	Content        string
}

func parseDialogy(root Object) dialogyPayload {
	var p dialogyPayload
	p.Event, _ = root.Text("event")
	p.ConversationID, p.HasID = root.Object("conversation").ID("id")
	p.Content, _ = root.Object("message").Text("content")
	return p
}

// DialogyMatcher claims Dialogy message.created events.
type DialogyMatcher struct{}

func (DialogyMatcher) Provider() models.Provider { return models.ProviderDialogy }

func (DialogyMatcher) Match(root Object) (Match, bool) {
	p := parseDialogy(root)
	if p.Event != "message.created" || !p.HasID {
		return Match{}, false
	}
	msg := strings.TrimSpace(p.Content)
	return Match{
		Provider:   models.ProviderDialogy,
		SessionKey: DialogySessionPrefix + p.ConversationID,
		Message:    &msg,
	}, true
}

// evolutionPayload holds the remote JID and every text candidate in probe
// order. Evolution API versions disagree on where the text lives.
type evolutionPayload struct {
	RemoteJID  string
	Candidates []string
}

func parseEvolution(root Object) evolutionPayload {
	data := root.Object("data")
	message := root.Object("message")

	var p evolutionPayload
	p.RemoteJID, _ = data.Object("key").Text("remoteJid")

	probes := []struct {
		obj Object
		key string
	}{
		{data.Object("message"), "conversation"},
		{message, "conversation"},
		{message, "body"},
		{message.Object("textMessage"), "text"},
		{root, "text"},
		{data.Object("message").Object("extendedTextMessage"), "text"},
	}
	for _, probe := range probes {
		s, _ := probe.obj.Text(probe.key)
		p.Candidates = append(p.Candidates, s)
	}
	return p
}

// EvolutionMatcher claims Evolution API (WhatsApp) events keyed by remoteJid.
type EvolutionMatcher struct{}

func (EvolutionMatcher) Provider() models.Provider { return models.ProviderEvolution }

func (EvolutionMatcher) Match(root Object) (Match, bool) {
	p := parseEvolution(root)
	if p.RemoteJID == "" {
		return Match{}, false
	}

	m := Match{
		Provider:   models.ProviderEvolution,
		SessionKey: EvolutionSessionPrefix + p.RemoteJID,
	}
	for _, c := range p.Candidates {
		if c != "" {
			msg := strings.TrimSpace(c)
			m.Message = &msg
			break
		}
	}
	return m, true
}
