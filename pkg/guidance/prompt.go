package guidance

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a compassionate Christian counselor providing biblical guidance."

const responseFormat = `Please provide:
1. 2-3 relevant Bible verses that directly address this situation (use well-known translations like NIV or ESV)
2. A brief explanation of why each verse applies to their specific situation
3. A short, heartfelt prayer for their situation
4. One practical action step rooted in scripture
5. A brief encouraging word

Format your response as JSON:
{
  "verses": [
    {
      "reference": "Book Chapter:Verse",
      "text": "The actual verse text",
      "application": "2-3 sentences on why this verse specifically applies to their situation"
    }
  ],
  "prayer": "A personal prayer addressing their specific situation",
  "actionStep": "One practical thing they can do today",
  "encouragement": "A brief, uplifting message of hope"
}

Ensure the response is compassionate, specific to their situation, and grounded in biblical truth.`

// SystemPrompt returns the counselor persona sent as the system message.
func SystemPrompt() string {
	return systemPrompt
}

// BuildPrompt renders the user message for req.
func BuildPrompt(req Request) string {
	var context strings.Builder
	if mood := strings.TrimSpace(req.Mood); mood != "" {
		fmt.Fprintf(&context, "The person is feeling %s. ", mood)
	}
	if recent := strings.TrimSpace(req.RecentJournalContent); recent != "" {
		fmt.Fprintf(&context, "Recent reflection: \"%s\" ", recent)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User's situation: \"%s\"\n", strings.TrimSpace(req.Situation))
	if context.Len() > 0 {
		b.WriteString("Context: ")
		b.WriteString(context.String())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(responseFormat)
	return b.String()
}
