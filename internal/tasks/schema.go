package tasks

import (
	"google.golang.org/genai"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
)

var signalFields = []string{
	"headline", "summary", "importance", "matchedProducts",
	"decisionMaker", "urgency", "sourceUrl", "sourceTitle",
}

// SignalSchema is the response schema shared by every search task: an array
// of claimed signals with all fields required.
func SignalSchema() *genai.Schema {
	urgencies := make([]string, 0, len(models.Urgencies))
	for _, u := range models.Urgencies {
		urgencies = append(urgencies, string(u))
	}
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"headline":   str("One-line description of the event"),
				"summary":    str("Two or three sentences on what happened"),
				"importance": str("Why this event creates a sales opportunity"),
				"matchedProducts": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
				"decisionMaker": str("Organisation or person who will buy"),
				"urgency": {
					Type: genai.TypeString,
					Enum: urgencies,
				},
				"sourceUrl":   str("Exact URL of the retrieved page"),
				"sourceTitle": str("Exact title of the retrieved page"),
			},
			Required:         append([]string(nil), signalFields...),
			PropertyOrdering: append([]string(nil), signalFields...),
		},
	}
}
