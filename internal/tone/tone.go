// Package tone builds tone-styled prompt templates for RAG answers and
// applies light humanizing touches to generated replies.
package tone

import (
	"fmt"
	"strings"
)

// Supported tones. DefaultTone is used when a caller does not specify one.
const (
	Formal   = "Formal"
	Friendly = "Friendly"
	Concise  = "Concise/Direct"
	Playful  = "Playful/Humorous"
	Flirty   = "Flirty"

	DefaultTone = Friendly
)

var validTones = map[string]bool{
	Formal:   true,
	Friendly: true,
	Concise:  true,
	Playful:  true,
	Flirty:   true,
}

// IsValid reports whether the tone name is one of the supported tones.
func IsValid(tone string) bool {
	return validTones[tone]
}

// Normalize returns the tone unchanged when valid, DefaultTone otherwise.
func Normalize(tone string) string {
	if IsValid(tone) {
		return tone
	}
	return DefaultTone
}

// Prompt renders the tone-specific prompt template around the retrieved
// context and the user's question.
func Prompt(context, userQuery, tone string) string {
	switch Normalize(tone) {
	case Formal:
		return fmt.Sprintf(`Primary_tone: Formal
Context: %s

Question: %s

Instructions:
1. Provide a professional, courteous response that fully addresses the question within the context.
2. Use complete sentences and avoid contractions.
3. If the question is not related to the context, respond with a polite phrase such as, "I'm sorry, but I don't have information on that matter."

Answer:`, context, userQuery)
	case Concise:
		return fmt.Sprintf(`Primary_tone: Concise/Direct
Context: %s

Question: %s

Instructions:
1. Provide a brief, straight-to-the-point answer. Avoid extra detail unless essential to the question.
2. Use minimal language to address the question effectively.
3. If unrelated, simply reply, "I'm sorry, that's outside the current context."

Answer:`, context, userQuery)
	case Playful:
		return fmt.Sprintf(`Primary_tone: Playful/Humorous
Context: %s

Question: %s

Instructions:
1. Respond in a light-hearted, playful way, using emojis where appropriate 😊 and friendly humor.
2. Keep the tone fun and casual, and feel free to include a little wit or a joke if it fits naturally!
3. If the question doesn't relate, say something like, "Oops! Looks like I don't have the scoop on that! 🙈 But feel free to ask me anything else!"

Answer:`, context, userQuery)
	case Flirty:
		return fmt.Sprintf(`Primary_tone: Flirty
Context: %s
Question: %s

Instructions:
1. Respond with a fun, charming tone that's subtly flirtatious, using light-hearted compliments and playful language.
2. Feel free to add emojis like 😉 or 😍 to keep things casual and inviting.
3. Keep it friendly and light; if the question isn't relevant to the context, reply with something like, "Hmm, I'm not sure about that, but I'd love to help you with something else! 😉"

Answer:`, context, userQuery)
	default:
		return fmt.Sprintf(`Primary_tone: Friendly
Context: %s

Question: %s

Instructions:
1. Write a response in a warm, conversational tone, as if you're chatting with a friend.
2. Use expressive language and engage with the user personally. Feel free to use emojis like 😊 or phrases like "Hey there!" to make it relatable.
3. Add a touch of encouragement or positivity to the response. For instance, say "You're doing great!" or "I'm here to help!"
4. If you don't know the answer, be transparent but assure them of your willingness to assist further.
5. Use light humor or relatable metaphors when appropriate to make the response enjoyable.

Answer:`, context, userQuery)
	}
}

// Humanize contracts a couple of stiff phrasings and appends a trailing
// emoji so replies read less machine-generated.
func Humanize(response string) string {
	response = strings.ReplaceAll(response, "I am", "I'm")
	response = strings.ReplaceAll(response, "do not", "don't")
	if strings.HasSuffix(response, "!") {
		return response + " 😉"
	}
	return response + " 😊"
}
