package usecase

import (
	"strconv"
	"strings"
)

const bookTitle = "Amity Profess"

var systemPrompt = buildSystemPrompt()

// SystemPrompt is the fixed instruction sent with every upstream call. It is
// never part of the visible conversation.
func SystemPrompt() string {
	return systemPrompt
}

func buildSystemPrompt() string {
	return strings.Join([]string{
		"You are an intelligent literary assistant specialized in the book \"" + bookTitle + "\". Your role is to:",
		"",
		numbered(roleDuties()),
		"",
		"When answering:",
		bulleted(answerRules()),
		"",
		"Your goal is to enhance the reader's understanding and appreciation of the book through thoughtful, in-depth responses.",
	}, "\n")
}

func roleDuties() []string {
	return []string{
		"Answer questions about the book with deep, comprehensive explanations",
		"Provide context, analysis, and insights about themes, characters, plot, and literary devices",
		"Help readers understand complex concepts and connections within the book",
		"Offer multiple perspectives and interpretations when relevant",
		"Break down difficult passages or ideas into understandable parts",
		"Connect ideas across different chapters and sections",
	}
}

func answerRules() []string {
	return []string{
		"Be thorough and detailed in your explanations",
		"Use examples from the text when possible",
		"Explain the \"why\" and \"how\" behind concepts, not just the \"what\"",
		"If you're unsure about specific details, acknowledge it and provide general literary analysis instead",
		"Encourage critical thinking by exploring different interpretations",
		"Make connections to broader themes and ideas",
	}
}

func numbered(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strconv.Itoa(i+1) + ". " + l
	}
	return strings.Join(out, "\n")
}

func bulleted(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "- " + l
	}
	return strings.Join(out, "\n")
}
