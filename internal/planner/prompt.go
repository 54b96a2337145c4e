package planner

import "fmt"

const promptTemplate = `Analyze the following health-related question and:
1. Decide whether answering it well requires looking up scientific research (true/false).
2. If research is required, break the question into 3-4 specific, self-contained sub-questions.

Question: %s

Respond with a single JSON object and nothing else:
{
    "needs_research": true,
    "sub_queries": [
        "What is [topic] and how does it work?",
        "What are the proven benefits of [topic]?",
        "What are the potential risks and side effects of [topic]?",
        "What does recent scientific research say about the safety of [topic]?"
    ]
}

Greetings, small talk and simple general-wellness questions do not need research.
If research is not needed, set "needs_research" to false and return an empty "sub_queries" list.`

func buildPrompt(utterance string) string {
	return fmt.Sprintf(promptTemplate, utterance)
}
