package synth

import (
	"fmt"
	"strings"

	"github.com/ashureev/healthchat/internal/domain"
)

const reasoningTemplate = `As a health advisor, use step-by-step reasoning to prepare a helpful response.

User Query: %s
%s
Context Information:
%s

Think through these steps:
1. Query Analysis:
- What is the main health topic or concern?
- Is this a general or a specific question?
- What level of detail is appropriate?

2. Context Evaluation:
- What relevant information is available?
- Are there any safety concerns?
- Which research findings matter most?

3. Response Planning:
- Which key points must be addressed?
- Are any warnings needed?
- Should professional consultation be recommended?

4. Response Formulation:
- Start with a direct answer
- Weave in relevant context naturally
- Add safety information when needed
- Suggest professional help when appropriate

Important Guidelines:
- Only mention general health tips (water, sleep, vitamins) if directly relevant
- Only recommend products if specifically relevant
- Stay within the scope of the user's question
- Be clear about limitations and uncertainties
- Keep a conversational but professional tone

Now reason through your response step by step.

Reasoning:`

const finalTemplate = `Based on this reasoning:
%s

Write a natural, conversational response that answers the user's question:
"%s"

Remember:
- Be direct and relevant
- Do not show the reasoning steps
- Do not force general health tips
- Only mention products if truly relevant
- Disclose uncertainty and suggest a healthcare professional when warranted
- Keep it concise and natural

Final Response:`

// contextBlock joins the non-empty context sections in a fixed order:
// local knowledge, user context, research findings.
func contextBlock(retrieval domain.RetrievalContext, profile *domain.UserProfile, research domain.ResearchBundle) string {
	var parts []string
	if !retrieval.Empty() {
		parts = append(parts, "Local Knowledge:\n"+retrieval.String())
	}
	if profile.HasSummary() {
		parts = append(parts, "User Context:\n"+profile.Summary)
	}
	if research.Len() > 0 {
		parts = append(parts, "Research Findings:\n"+research.Format())
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, "\n\n")
}

// preamble renders the optional conversation history and sub-question list
// that sit between the query and the context block.
func preamble(history []domain.Turn, subQueries []string) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, t := range history {
			label := "User"
			if t.Role == domain.RoleAssistant {
				label = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, t.Content)
		}
	}
	if len(subQueries) > 0 {
		b.WriteString("\nSub-questions investigated:\n")
		for _, q := range subQueries {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	return b.String()
}

func buildReasoningPrompt(req Request) string {
	return fmt.Sprintf(reasoningTemplate,
		req.Query,
		preamble(req.History, req.SubQueries),
		contextBlock(req.Retrieval, req.Profile, req.Research),
	)
}

func buildFinalPrompt(query string, trace ReasoningTrace) string {
	return fmt.Sprintf(finalTemplate, trace.text, query)
}
