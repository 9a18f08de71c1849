package ai

import "fmt"

const generationSystemPrompt = "You are a professional educational assistant. " +
	"Based on the provided learning material, generate one thoughtful question " +
	"that tests understanding of the key concepts. Return only the question text, " +
	"with no preamble or numbering."

const evaluationSystemPrompt = "You are a professional educational assistant " +
	"evaluating a learner's answer. Respond with a JSON object and nothing else, " +
	"in the form {\"score\": <integer 0-100>, \"feedback\": \"<one or two sentences>\", " +
	"\"suggestions\": [\"<improvement 1>\", \"<improvement 2>\"]}."

func generationUserPrompt(contextSnippet string) string {
	return fmt.Sprintf("Learning material:\n\n%s\n\nGenerate one question.", contextSnippet)
}

func evaluationUserPrompt(question, answer, contextSnippet string) string {
	if contextSnippet == "" {
		return fmt.Sprintf("Question: %s\n\nLearner's answer: %s\n\nEvaluate the answer.", question, answer)
	}
	return fmt.Sprintf("Reference material:\n%s\n\nQuestion: %s\n\nLearner's answer: %s\n\nEvaluate the answer against the reference material.",
		contextSnippet, question, answer)
}
