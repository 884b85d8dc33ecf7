// Package quizzes is the I/O side of quiz access: loading question sets
// under an already-computed access level, saving quizzes, and recording
// attempts. The rule that matters most here: when access is LOCKED the
// question query is never issued at all.
package quizzes

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"lomda/access"
	"lomda/models"
	"lomda/store"
)

var (
	ErrMissingSchool    = errors.New("missing school id")
	ErrMissingQuizID    = errors.New("missing quiz id")
	ErrMissingUserEmail = errors.New("missing user email")
)

type Engine struct {
	store    store.Scoped
	validate *validator.Validate
}

func NewEngine(s store.Scoped) *Engine {
	return &Engine{
		store:    s,
		validate: validator.New(),
	}
}

// Bundle is what a caller gets back for one quiz under one access level.
type Bundle struct {
	Quiz      *models.Quiz
	Questions []Question
	Access    access.Level
}

// GetQuizMeta fetches quiz metadata for a school. Absence is (nil, nil).
func (e *Engine) GetQuizMeta(schoolID, quizID uint) (*models.Quiz, error) {
	if schoolID == 0 || quizID == 0 {
		return nil, nil
	}
	var quiz models.Quiz
	found, err := e.store.First(&quiz, schoolID, map[string]interface{}{"id": quizID})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &quiz, nil
}

// LoadQuizForAccess loads the quiz and as many questions as the access
// level permits. Non-teachers on any non-granting level get metadata
// only, without the question fetch ever reaching the store. PREVIEW is
// capped at the quiz's preview limit, in original index order.
func (e *Engine) LoadQuizForAccess(schoolID, quizID uint, level access.Level, isTeacher bool) (*Bundle, error) {
	quiz, err := e.GetQuizMeta(schoolID, quizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return &Bundle{Questions: []Question{}, Access: access.NotFound}, nil
	}

	// Positive gate: only FULL and PREVIEW may fetch. Anything else
	// (LOCKED, DRIP_LOCKED, NOT_FOUND) grants nothing.
	if !isTeacher && !access.ShouldFetchMaterials(level) {
		return &Bundle{Quiz: quiz, Questions: []Question{}, Access: level}, nil
	}

	limit := 0 // 0 = unlimited
	if !isTeacher && level == access.Preview {
		limit = quiz.PreviewLimitQuestions
		if limit <= 0 {
			limit = DefaultPreviewQuestions
		}
	}

	questions, err := e.sourceFor(quiz).fetchQuestions(limit)
	if err != nil {
		return nil, err
	}
	return &Bundle{Quiz: quiz, Questions: questions, Access: level}, nil
}

// questionSource hides the two storage modes behind one contract.
type questionSource interface {
	fetchQuestions(limit int) ([]Question, error)
}

func (e *Engine) sourceFor(quiz *models.Quiz) questionSource {
	if e.store.SupportsQuizQuestions() {
		return &normalizedSource{store: e.store, schoolID: quiz.SchoolID, quizID: quiz.ID}
	}
	return &inlineSource{quiz: quiz}
}

// normalizedSource reads QuizQuestion rows ordered by question_index.
type normalizedSource struct {
	store    store.Scoped
	schoolID uint
	quizID   uint
}

func (src *normalizedSource) fetchQuestions(limit int) ([]Question, error) {
	var rows []models.QuizQuestion
	err := src.store.Filter(&rows, src.schoolID, map[string]interface{}{"quiz_id": src.quizID}, "question_index", limit)
	if err != nil {
		return nil, err
	}
	questions := make([]Question, 0, len(rows))
	for i := range rows {
		questions = append(questions, questionFromRow(&rows[i]))
	}
	return questions, nil
}

// inlineSource reads the questions array embedded in the quiz record.
// The fetch already happened with the metadata; only the render limit
// can still be enforced.
type inlineSource struct {
	quiz *models.Quiz
}

func (src *inlineSource) fetchQuestions(limit int) ([]Question, error) {
	if len(src.quiz.Questions) == 0 {
		return []Question{}, nil
	}
	var raws []RawQuestion
	if err := json.Unmarshal(src.quiz.Questions, &raws); err != nil {
		// Corrupt inline payloads render as empty, they don't crash reads.
		return []Question{}, nil
	}
	questions := make([]Question, 0, len(raws))
	for _, raw := range raws {
		questions = append(questions, NormalizeQuestion(raw))
	}
	if limit > 0 && len(questions) > limit {
		questions = questions[:limit]
	}
	return questions, nil
}

func questionFromRow(row *models.QuizQuestion) Question {
	var options []string
	if len(row.Options) > 0 {
		_ = json.Unmarshal(row.Options, &options)
	}
	if options == nil {
		options = []string{}
	}
	points := row.Points
	if points <= 0 {
		points = 1
	}
	return Question{
		Question:       row.Question,
		QuestionHebrew: row.QuestionHebrew,
		Options:        options,
		CorrectAnswer:  row.CorrectAnswer,
		Explanation:    row.Explanation,
		Points:         points,
	}
}

type QuizMeta struct {
	Title                 string `json:"title"`
	Description           string `json:"description"`
	CourseID              *uint  `json:"course_id"`
	LessonID              *uint  `json:"lesson_id"`
	PassingScore          int    `json:"passing_score"`
	TimeLimitSeconds      *int   `json:"time_limit_seconds"`
	ShuffleQuestions      bool   `json:"shuffle_questions"`
	MaxAttempts           *int   `json:"max_attempts"`
	PreviewLimitQuestions *int   `json:"preview_limit_questions"`
	IsPublished           bool   `json:"is_published"`
}

type SaveQuizInput struct {
	SchoolID  uint `validate:"required"`
	QuizID    uint // 0 = create
	Meta      QuizMeta
	Questions []RawQuestion
	UserEmail string
}

// SaveQuiz validates and persists a quiz. Questions missing a prompt or
// holding fewer than two options are dropped, not errored; the count
// reflects what actually persisted. With normalized storage the question
// rows are replaced inside one transaction so readers never observe a
// partial set.
func (e *Engine) SaveQuiz(in SaveQuizInput) (uint, error) {
	if err := e.validate.Struct(in); err != nil {
		return 0, ErrMissingSchool
	}

	valid := make([]Question, 0, len(in.Questions))
	for _, raw := range in.Questions {
		q := NormalizeQuestion(raw)
		if q.IsValid() {
			valid = append(valid, q)
		}
	}

	meta := in.Meta
	title := meta.Title
	if title == "" {
		title = "Untitled quiz"
	}
	passingScore := meta.PassingScore
	if passingScore <= 0 {
		passingScore = 70
	}
	previewLimit := DefaultPreviewQuestions
	if meta.PreviewLimitQuestions != nil {
		previewLimit = *meta.PreviewLimitQuestions
	}

	supports := e.store.SupportsQuizQuestions()

	var inline datatypes.JSON
	if !supports {
		payload, err := json.Marshal(valid)
		if err != nil {
			return 0, err
		}
		inline = payload
	}

	quizID := in.QuizID
	err := e.store.Transaction(func(tx store.Scoped) error {
		if quizID != 0 {
			fields := map[string]interface{}{
				"title":                   title,
				"description":             meta.Description,
				"course_id":               meta.CourseID,
				"lesson_id":               meta.LessonID,
				"passing_score":           passingScore,
				"time_limit_seconds":      meta.TimeLimitSeconds,
				"shuffle_questions":       meta.ShuffleQuestions,
				"max_attempts":            meta.MaxAttempts,
				"preview_limit_questions": previewLimit,
				"is_published":            meta.IsPublished,
				"questions_count":         len(valid),
				"updated_by":              in.UserEmail,
			}
			if !supports {
				fields["questions"] = inline
			}
			if err := tx.Update(&models.Quiz{}, quizID, in.SchoolID, fields, true); err != nil {
				return err
			}
		} else {
			quiz := models.Quiz{
				Title:                 title,
				Description:           meta.Description,
				CourseID:              meta.CourseID,
				LessonID:              meta.LessonID,
				PassingScore:          passingScore,
				TimeLimitSeconds:      meta.TimeLimitSeconds,
				ShuffleQuestions:      meta.ShuffleQuestions,
				MaxAttempts:           meta.MaxAttempts,
				PreviewLimitQuestions: previewLimit,
				IsPublished:           meta.IsPublished,
				QuestionsCount:        len(valid),
				Questions:             inline,
				SchemaVersion:         1,
				CreatedBy:             in.UserEmail,
				UpdatedBy:             in.UserEmail,
			}
			if err := tx.Create(in.SchoolID, &quiz); err != nil {
				return err
			}
			quizID = quiz.ID
		}

		if !supports {
			return nil
		}
		return replaceQuestions(tx, in.SchoolID, quizID, valid)
	})
	if err != nil {
		return 0, err
	}
	return quizID, nil
}

func replaceQuestions(tx store.Scoped, schoolID, quizID uint, questions []Question) error {
	var existing []models.QuizQuestion
	if err := tx.Filter(&existing, schoolID, map[string]interface{}{"quiz_id": quizID}, "question_index", 0); err != nil {
		return err
	}
	for i := range existing {
		if err := tx.Delete(&models.QuizQuestion{}, existing[i].ID, schoolID, true); err != nil {
			return err
		}
	}
	for index, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		row := models.QuizQuestion{
			QuizID:         quizID,
			QuestionIndex:  index,
			Question:       q.Question,
			QuestionHebrew: q.QuestionHebrew,
			Options:        options,
			CorrectAnswer:  q.CorrectAnswer,
			Explanation:    q.Explanation,
			Points:         q.Points,
		}
		if err := tx.Create(schoolID, &row); err != nil {
			return err
		}
	}
	return nil
}

type AttemptAnswer struct {
	QuestionIndex int    `json:"question_index"`
	Answer        string `json:"answer"`
	IsCorrect     bool   `json:"is_correct"`
}

type RecordAttemptInput struct {
	SchoolID         uint   `validate:"required"`
	QuizID           uint   `validate:"required"`
	UserEmail        string `validate:"required,email"`
	Score            int
	Passed           bool
	Answers          []AttemptAnswer
	TimeTakenSeconds *int
}

// RecordQuizAttempt persists one immutable attempt record. Missing
// identity fields reject before any persistence call.
func (e *Engine) RecordQuizAttempt(in RecordAttemptInput) (uint, error) {
	if in.SchoolID == 0 {
		return 0, ErrMissingSchool
	}
	if in.QuizID == 0 {
		return 0, ErrMissingQuizID
	}
	if err := e.validate.Struct(in); err != nil {
		return 0, ErrMissingUserEmail
	}

	score := in.Score
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	answers := in.Answers
	if answers == nil {
		answers = []AttemptAnswer{}
	}
	payload, err := json.Marshal(answers)
	if err != nil {
		return 0, err
	}

	attempt := models.QuizAttempt{
		QuizID:           in.QuizID,
		UserEmail:        in.UserEmail,
		Score:            score,
		Passed:           in.Passed,
		Answers:          payload,
		TimeTakenSeconds: in.TimeTakenSeconds,
		CompletedAt:      time.Now().UTC(),
	}
	if err := e.store.Create(in.SchoolID, &attempt); err != nil {
		return 0, err
	}
	return attempt.ID, nil
}
