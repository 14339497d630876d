package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/config"
)

// Reply is what a Responder produces for one user message.
type Reply struct {
	Text   string
	Intent string
}

// Responder answers chat messages.
type Responder interface {
	Reply(ctx context.Context, sessionID, message string, history []Turn) (Reply, error)
	Name() string
}

// Intents recognised by the keyword responder.
const (
	IntentBookAppointment = "BookAppointment"
	IntentServices        = "DentalServices"
	IntentHours           = "OfficeHours"
	IntentGreeting        = "Greeting"
	IntentFallback        = "FallbackIntent"
)

type keywordRule struct {
	intent   string
	keywords []string
	reply    string
}

var keywordRules = []keywordRule{
	{
		intent:   IntentBookAppointment,
		keywords: []string{"book", "appointment", "schedule", "reserve"},
		reply:    "Sure, what day works?",
	},
	{
		intent:   IntentServices,
		keywords: []string{"service", "cleaning", "whitening", "filling", "implant", "braces", "root canal"},
		reply:    "We offer cleanings, fillings, whitening, implants, orthodontics and root canal treatment. Which one would you like to know more about?",
	},
	{
		intent:   IntentHours,
		keywords: []string{"hour", "open", "close", "when"},
		reply:    "We are open Monday to Friday from 8am to 6pm and Saturday from 9am to 1pm.",
	},
	{
		intent:   IntentGreeting,
		keywords: []string{"hello", "hi", "hey", "good morning", "good afternoon"},
		reply:    "Hello! How can I help you with your dental care today?",
	},
}

const fallbackReply = "I'm not sure I understood that. You can ask me to book an appointment or about our dental services."

// KeywordResponder matches messages against a fixed rule table.
type KeywordResponder struct{}

// Name identifies the responder in logs and health output.
func (KeywordResponder) Name() string { return "keyword" }

// Reply picks the first rule with a keyword starting a word of message.
func (KeywordResponder) Reply(_ context.Context, _ string, message string, _ []Turn) (Reply, error) {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	normalized := " " + strings.Join(words, " ")
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(normalized, " "+kw) {
				return Reply{Text: rule.reply, Intent: rule.intent}, nil
			}
		}
	}
	return Reply{Text: fallbackReply, Intent: IntentFallback}, nil
}

const defaultSystemPrompt = "You are the front-desk assistant of a dental clinic. " +
	"Help patients book appointments and answer questions about dental services and procedures. " +
	"Keep answers short, friendly and factual. Do not give medical diagnoses."

const historyLimit = 10

// ModelResponder answers through an Ark chat model.
type ModelResponder struct {
	system string
	chain  compose.Runnable[map[string]any, *schema.Message]
}

// NewModelResponder builds the prompt chain on top of the configured model.
func NewModelResponder(ctx context.Context, cfg config.AIConfig) (*ModelResponder, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	system := cfg.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}

	return &ModelResponder{system: system, chain: runnable}, nil
}

// Name identifies the responder in logs and health output.
func (m *ModelResponder) Name() string { return "ark" }

// Reply runs the chain with the recent history of the session.
func (m *ModelResponder) Reply(ctx context.Context, sessionID, message string, history []Turn) (Reply, error) {
	response, err := m.chain.Invoke(ctx, map[string]any{
		"system":  m.system,
		"history": buildHistoryMessages(history),
		"query":   message,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("failed to run chat chain: %w", err)
	}

	slog.Info("generated reply", "component", "devserver", "session", sessionID, "length", len(response.Content))
	return Reply{Text: response.Content}, nil
}

func buildHistoryMessages(turns []Turn) []*schema.Message {
	if len(turns) > historyLimit {
		turns = turns[len(turns)-historyLimit:]
	}
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns)*2)
	for _, turn := range turns {
		history = append(history, schema.UserMessage(turn.Message))
		history = append(history, schema.AssistantMessage(turn.Response, nil))
	}
	return history
}
