package language

import "fmt"

func detectPrompt(sample string) string {
	return fmt.Sprintf(`What is the main language of this text? Respond with only the name of the language (e.g., 'English', 'Spanish', 'French'). Text: %q`, sample)
}

func definitionPrompt(word, language string) string {
	return fmt.Sprintf(`In %s, what is a concise, simple definition for the word %q? The definition must be easy for a language learner to understand. Respond with only the definition itself, in plain text, without any introductory phrases or markdown formatting like asterisks.`, language, word)
}
