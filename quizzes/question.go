package quizzes

// DefaultPreviewQuestions caps how many questions an unentitled caller
// may preview when a quiz does not set its own limit.
const DefaultPreviewQuestions = 2

// RawQuestion tolerates every field-name variant that has shown up in
// imported quizzes: modern names, legacy names, and a correct-answer
// index instead of the answer text.
type RawQuestion struct {
	Question           string   `json:"question"`
	Prompt             string   `json:"prompt"`
	QuestionHebrew     string   `json:"question_hebrew"`
	PromptHebrew       string   `json:"prompt_hebrew"`
	Options            []string `json:"options"`
	Choices            []string `json:"choices"`
	CorrectAnswer      string   `json:"correct_answer"`
	CorrectAnswerCamel string   `json:"correctAnswer"`
	CorrectIndex       *int     `json:"correctIndex"`
	CorrectOption      *int     `json:"correct_option"`
	Explanation        string   `json:"explanation"`
	Rationale          string   `json:"rationale"`
	Points             *int     `json:"points"`
}

// Question is the canonical shape every storage mode and input variant
// normalizes to.
type Question struct {
	Question       string   `json:"question"`
	QuestionHebrew string   `json:"question_hebrew"`
	Options        []string `json:"options"`
	CorrectAnswer  string   `json:"correct_answer"`
	Explanation    string   `json:"explanation"`
	Points         int      `json:"points"`
}

// NormalizeQuestion maps a raw record to the canonical shape. Missing
// fields default to neutral values; a correct-answer index outside the
// options list means "no resolved answer", never a panic.
func NormalizeQuestion(raw RawQuestion) Question {
	options := raw.Options
	if options == nil {
		options = raw.Choices
	}
	if options == nil {
		options = []string{}
	}

	correct := raw.CorrectAnswer
	if correct == "" {
		correct = raw.CorrectAnswerCamel
	}
	if correct == "" {
		index := raw.CorrectIndex
		if index == nil {
			index = raw.CorrectOption
		}
		if index != nil && *index >= 0 && *index < len(options) {
			correct = options[*index]
		}
	}

	question := raw.Question
	if question == "" {
		question = raw.Prompt
	}
	hebrew := raw.QuestionHebrew
	if hebrew == "" {
		hebrew = raw.PromptHebrew
	}
	explanation := raw.Explanation
	if explanation == "" {
		explanation = raw.Rationale
	}

	points := 1
	if raw.Points != nil && *raw.Points > 0 {
		points = *raw.Points
	}

	return Question{
		Question:       question,
		QuestionHebrew: hebrew,
		Options:        options,
		CorrectAnswer:  correct,
		Explanation:    explanation,
		Points:         points,
	}
}

// IsValid reports whether the question may be persisted: a prompt and at
// least two options. Invalid questions are dropped on save, not errored.
func (q Question) IsValid() bool {
	return q.Question != "" && len(q.Options) >= 2
}
