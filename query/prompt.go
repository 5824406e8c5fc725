package query

import (
	"fmt"
	"strings"

	"github.com/fabfab/therapy-rag/corpus"
	"github.com/fabfab/therapy-rag/vectorstore"
)

// NoContextNotice replaces the context section when retrieval found nothing.
const NoContextNotice = "No relevant context documents found."

const promptTemplate = `Based on the following context documents, please answer the user's query.
Provide a concise and helpful answer grounded in the provided context.
If the context doesn't contain the answer, state that you couldn't find relevant information in the documents.

Context Documents:
---
%s
---

User Query: %s

Answer:`

// BuildPrompt assembles the final prompt from the ranked matches. When the
// rendered prompt would exceed maxChars, whole chunks are dropped from the
// lowest-ranked end until it fits; a chunk is never cut mid-text. Returns the
// prompt and how many matches were kept.
func BuildPrompt(question string, matches []vectorstore.Match, maxChars int) (string, int) {
	for kept := len(matches); kept > 0; kept-- {
		prompt := render(question, matches[:kept])
		if len([]rune(prompt)) <= maxChars {
			return prompt, kept
		}
	}
	return render(question, nil), 0
}

func render(question string, matches []vectorstore.Match) string {
	if len(matches) == 0 {
		return fmt.Sprintf(promptTemplate, NoContextNotice, question)
	}

	parts := make([]string, len(matches))
	for i, match := range matches {
		parts[i] = fmt.Sprintf("Source: %s\n%s", sourceLabel(match.Chunk), match.Chunk.Content)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n---\n"), question)
}

func sourceLabel(chunk corpus.DocumentChunk) string {
	label := chunk.Metadata[corpus.MetaSource]
	if label == "" {
		label = chunk.DocumentID.String()
	}
	if page := chunk.Metadata[corpus.MetaPage]; page != "" {
		label += ", page " + page
	}
	return label
}
