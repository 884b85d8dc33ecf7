package quizzes

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lomda/access"
	"lomda/models"
	"lomda/store"
)

// fakeStore implements store.Scoped in memory and counts question
// fetches, so tests can prove a query was never issued.
type fakeStore struct {
	quizzes   []models.Quiz
	questions []models.QuizQuestion
	attempts  []models.QuizAttempt

	normalized     bool
	questionsReads int
	nextID         uint
	updates        map[uint]map[string]interface{}
}

func newFakeStore(normalized bool) *fakeStore {
	return &fakeStore{
		normalized: normalized,
		nextID:     100,
		updates:    map[uint]map[string]interface{}{},
	}
}

func (f *fakeStore) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) Filter(dest interface{}, schoolID uint, match map[string]interface{}, sortBy string, limit int) error {
	if schoolID == 0 {
		return store.ErrMissingSchool
	}
	rows, ok := dest.(*[]models.QuizQuestion)
	if !ok {
		return nil
	}
	f.questionsReads++
	quizID, _ := match["quiz_id"].(uint)
	var out []models.QuizQuestion
	for _, row := range f.questions {
		if row.SchoolID == schoolID && row.QuizID == quizID {
			out = append(out, row)
		}
	}
	if sortBy == "question_index" {
		sort.Slice(out, func(i, j int) bool { return out[i].QuestionIndex < out[j].QuestionIndex })
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	*rows = out
	return nil
}

func (f *fakeStore) First(dest interface{}, schoolID uint, match map[string]interface{}) (bool, error) {
	if schoolID == 0 {
		return false, store.ErrMissingSchool
	}
	quiz, ok := dest.(*models.Quiz)
	if !ok {
		return false, nil
	}
	id, _ := match["id"].(uint)
	for i := range f.quizzes {
		if f.quizzes[i].SchoolID == schoolID && f.quizzes[i].ID == id {
			*quiz = f.quizzes[i]
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Create(schoolID uint, value interface{}) error {
	if schoolID == 0 {
		return store.ErrMissingSchool
	}
	switch v := value.(type) {
	case *models.Quiz:
		v.ID = f.id()
		v.SchoolID = schoolID
		f.quizzes = append(f.quizzes, *v)
	case *models.QuizQuestion:
		v.ID = f.id()
		v.SchoolID = schoolID
		f.questions = append(f.questions, *v)
	case *models.QuizAttempt:
		v.ID = f.id()
		v.SchoolID = schoolID
		f.attempts = append(f.attempts, *v)
	}
	return nil
}

func (f *fakeStore) Update(model interface{}, id, schoolID uint, fields map[string]interface{}, enforceOwnership bool) error {
	if schoolID == 0 {
		return store.ErrMissingSchool
	}
	for i := range f.quizzes {
		if f.quizzes[i].ID == id && (!enforceOwnership || f.quizzes[i].SchoolID == schoolID) {
			f.updates[id] = fields
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeStore) Delete(model interface{}, id, schoolID uint, enforceOwnership bool) error {
	if schoolID == 0 {
		return store.ErrMissingSchool
	}
	kept := f.questions[:0]
	for _, row := range f.questions {
		if row.ID == id && (!enforceOwnership || row.SchoolID == schoolID) {
			continue
		}
		kept = append(kept, row)
	}
	f.questions = kept
	return nil
}

func (f *fakeStore) Transaction(fn func(store.Scoped) error) error { return fn(f) }

func (f *fakeStore) SupportsQuizQuestions() bool { return f.normalized }

func seedQuiz(f *fakeStore, schoolID uint, previewLimit, questionCount int) uint {
	quiz := models.Quiz{
		SchoolID:              schoolID,
		Title:                 "Unit 1 check",
		PreviewLimitQuestions: previewLimit,
		IsPublished:           true,
		QuestionsCount:        questionCount,
	}
	quiz.ID = f.id()
	f.quizzes = append(f.quizzes, quiz)
	// Insert in reverse so reads must rely on the index sort.
	for i := questionCount - 1; i >= 0; i-- {
		row := models.QuizQuestion{
			SchoolID:      schoolID,
			QuizID:        quiz.ID,
			QuestionIndex: i,
			Question:      questionPrompt(i),
			Options:       datatypes.JSON(`["a","b","c"]`),
			CorrectAnswer: "a",
		}
		row.ID = f.id()
		f.questions = append(f.questions, row)
	}
	return quiz.ID
}

func questionPrompt(i int) string {
	return "question-" + string(rune('a'+i))
}

func TestLoadQuizForAccessNonGrantingNeverFetches(t *testing.T) {
	// NOT_FOUND included: the resolver returns it when a quiz's parent
	// course is missing, and that quiz record still exists here.
	for _, level := range []access.Level{access.Locked, access.DripLocked, access.NotFound} {
		t.Run(string(level), func(t *testing.T) {
			f := newFakeStore(true)
			quizID := seedQuiz(f, 1, 2, 5)
			engine := NewEngine(f)

			bundle, err := engine.LoadQuizForAccess(1, quizID, level, false)
			require.NoError(t, err)
			require.NotNil(t, bundle.Quiz)
			assert.Equal(t, level, bundle.Access)
			assert.Empty(t, bundle.Questions)
			assert.Equal(t, 5, bundle.Quiz.QuestionsCount)
			assert.Zero(t, f.questionsReads, "non-granting access must not reach the question table")
		})
	}
}

func TestLoadQuizForAccessNonGrantingInlineReturnsNothing(t *testing.T) {
	f := newFakeStore(false)
	quiz := models.Quiz{
		SchoolID:  1,
		Questions: datatypes.JSON(`[{"question":"q1","options":["a","b"],"correct_answer":"a"}]`),
	}
	quiz.ID = f.id()
	f.quizzes = append(f.quizzes, quiz)
	engine := NewEngine(f)

	for _, level := range []access.Level{access.Locked, access.DripLocked, access.NotFound} {
		bundle, err := engine.LoadQuizForAccess(1, quiz.ID, level, false)
		require.NoError(t, err)
		assert.Emptyf(t, bundle.Questions, "level %s must not expose inline questions", level)
	}
}

func TestLoadQuizForAccessPreviewLimit(t *testing.T) {
	f := newFakeStore(true)
	quizID := seedQuiz(f, 1, 2, 10)
	engine := NewEngine(f)

	bundle, err := engine.LoadQuizForAccess(1, quizID, access.Preview, false)
	require.NoError(t, err)
	require.Len(t, bundle.Questions, 2)
	assert.Equal(t, questionPrompt(0), bundle.Questions[0].Question)
	assert.Equal(t, questionPrompt(1), bundle.Questions[1].Question)
	assert.Equal(t, 1, f.questionsReads)
}

func TestLoadQuizForAccessPreviewDefaultLimit(t *testing.T) {
	f := newFakeStore(true)
	quizID := seedQuiz(f, 1, 0, 5)
	engine := NewEngine(f)

	bundle, err := engine.LoadQuizForAccess(1, quizID, access.Preview, false)
	require.NoError(t, err)
	assert.Len(t, bundle.Questions, DefaultPreviewQuestions)
}

func TestLoadQuizForAccessTeacherSeesEverything(t *testing.T) {
	f := newFakeStore(true)
	quizID := seedQuiz(f, 1, 2, 5)
	engine := NewEngine(f)

	bundle, err := engine.LoadQuizForAccess(1, quizID, access.Locked, true)
	require.NoError(t, err)
	assert.Len(t, bundle.Questions, 5)
}

func TestLoadQuizForAccessFull(t *testing.T) {
	f := newFakeStore(true)
	quizID := seedQuiz(f, 1, 2, 4)
	engine := NewEngine(f)

	bundle, err := engine.LoadQuizForAccess(1, quizID, access.Full, false)
	require.NoError(t, err)
	assert.Len(t, bundle.Questions, 4)
	assert.Equal(t, "a", bundle.Questions[0].CorrectAnswer)
}

func TestLoadQuizForAccessNotFound(t *testing.T) {
	f := newFakeStore(true)
	engine := NewEngine(f)

	bundle, err := engine.LoadQuizForAccess(1, 999, access.Full, false)
	require.NoError(t, err)
	assert.Nil(t, bundle.Quiz)
	assert.Equal(t, access.NotFound, bundle.Access)
	assert.Empty(t, bundle.Questions)
}

func TestLoadQuizForAccessCrossSchool(t *testing.T) {
	f := newFakeStore(true)
	quizID := seedQuiz(f, 1, 2, 3)
	engine := NewEngine(f)

	bundle, err := engine.LoadQuizForAccess(2, quizID, access.Full, false)
	require.NoError(t, err)
	assert.Equal(t, access.NotFound, bundle.Access)
}

func TestLoadQuizForAccessInlineFallback(t *testing.T) {
	f := newFakeStore(false)
	quiz := models.Quiz{
		SchoolID:              1,
		PreviewLimitQuestions: 2,
		Questions: datatypes.JSON(`[
			{"question":"q1","options":["a","b"],"correct_answer":"a"},
			{"prompt":"q2","choices":["a","b"],"correctAnswer":"b"},
			{"question":"q3","options":["a","b"],"correctIndex":1}
		]`),
	}
	quiz.ID = f.id()
	f.quizzes = append(f.quizzes, quiz)
	engine := NewEngine(f)

	t.Run("full reads every inline question", func(t *testing.T) {
		bundle, err := engine.LoadQuizForAccess(1, quiz.ID, access.Full, false)
		require.NoError(t, err)
		require.Len(t, bundle.Questions, 3)
		assert.Equal(t, "q2", bundle.Questions[1].Question)
		assert.Equal(t, "b", bundle.Questions[1].CorrectAnswer)
		assert.Equal(t, "b", bundle.Questions[2].CorrectAnswer)
		assert.Zero(t, f.questionsReads, "inline mode never touches the question table")
	})

	t.Run("preview slices the inline set", func(t *testing.T) {
		bundle, err := engine.LoadQuizForAccess(1, quiz.ID, access.Preview, false)
		require.NoError(t, err)
		assert.Len(t, bundle.Questions, 2)
	})
}

func TestLoadQuizForAccessCorruptInline(t *testing.T) {
	f := newFakeStore(false)
	quiz := models.Quiz{SchoolID: 1, Questions: datatypes.JSON(`{not json`)}
	quiz.ID = f.id()
	f.quizzes = append(f.quizzes, quiz)
	engine := NewEngine(f)

	bundle, err := engine.LoadQuizForAccess(1, quiz.ID, access.Full, false)
	require.NoError(t, err)
	assert.Empty(t, bundle.Questions)
}

func TestSaveQuizDropsInvalidQuestions(t *testing.T) {
	f := newFakeStore(true)
	engine := NewEngine(f)

	quizID, err := engine.SaveQuiz(SaveQuizInput{
		SchoolID: 1,
		Meta:     QuizMeta{Title: "Drip basics"},
		Questions: []RawQuestion{
			{Question: "first", Options: []string{"a", "b"}, CorrectAnswer: "a"},
			{Question: "only one option", Options: []string{"a"}},
			{Question: "third", Options: []string{"a", "b", "c"}, CorrectAnswer: "c"},
		},
		UserEmail: "teacher@school.test",
	})
	require.NoError(t, err)
	require.NotZero(t, quizID)

	require.Len(t, f.quizzes, 1)
	assert.Equal(t, 2, f.quizzes[0].QuestionsCount)
	require.Len(t, f.questions, 2)
	assert.Equal(t, 0, f.questions[0].QuestionIndex)
	assert.Equal(t, "first", f.questions[0].Question)
	assert.Equal(t, 1, f.questions[1].QuestionIndex)
	assert.Equal(t, "third", f.questions[1].Question)
}

func TestSaveQuizDefaults(t *testing.T) {
	f := newFakeStore(true)
	engine := NewEngine(f)

	_, err := engine.SaveQuiz(SaveQuizInput{SchoolID: 1})
	require.NoError(t, err)
	require.Len(t, f.quizzes, 1)
	assert.Equal(t, "Untitled quiz", f.quizzes[0].Title)
	assert.Equal(t, 70, f.quizzes[0].PassingScore)
	assert.Equal(t, DefaultPreviewQuestions, f.quizzes[0].PreviewLimitQuestions)
}

func TestSaveQuizMissingSchool(t *testing.T) {
	engine := NewEngine(newFakeStore(true))
	_, err := engine.SaveQuiz(SaveQuizInput{Meta: QuizMeta{Title: "x"}})
	assert.ErrorIs(t, err, ErrMissingSchool)
}

func TestSaveQuizUpdateReplacesQuestions(t *testing.T) {
	f := newFakeStore(true)
	quizID := seedQuiz(f, 1, 2, 4)
	engine := NewEngine(f)

	_, err := engine.SaveQuiz(SaveQuizInput{
		SchoolID: 1,
		QuizID:   quizID,
		Meta:     QuizMeta{Title: "Replaced"},
		Questions: []RawQuestion{
			{Question: "the only one left", Options: []string{"a", "b"}},
		},
	})
	require.NoError(t, err)

	require.Len(t, f.questions, 1)
	assert.Equal(t, "the only one left", f.questions[0].Question)
	assert.Equal(t, quizID, f.questions[0].QuizID)

	fields := f.updates[quizID]
	require.NotNil(t, fields)
	assert.Equal(t, "Replaced", fields["title"])
	assert.Equal(t, 1, fields["questions_count"])
}

func TestSaveQuizUpdateUnknownQuiz(t *testing.T) {
	engine := NewEngine(newFakeStore(true))
	_, err := engine.SaveQuiz(SaveQuizInput{SchoolID: 1, QuizID: 42})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSaveQuizInlineStorage(t *testing.T) {
	f := newFakeStore(false)
	engine := NewEngine(f)

	_, err := engine.SaveQuiz(SaveQuizInput{
		SchoolID: 1,
		Questions: []RawQuestion{
			{Question: "q", Options: []string{"a", "b"}, CorrectAnswer: "b"},
		},
	})
	require.NoError(t, err)
	require.Len(t, f.quizzes, 1)
	assert.NotEmpty(t, f.quizzes[0].Questions)
	assert.Empty(t, f.questions, "inline mode writes no normalized rows")
	assert.Zero(t, f.questionsReads)
}

func TestRecordQuizAttemptValidation(t *testing.T) {
	f := newFakeStore(true)
	engine := NewEngine(f)

	_, err := engine.RecordQuizAttempt(RecordAttemptInput{QuizID: 1, UserEmail: "a@b.test"})
	assert.ErrorIs(t, err, ErrMissingSchool)

	_, err = engine.RecordQuizAttempt(RecordAttemptInput{SchoolID: 1, UserEmail: "a@b.test"})
	assert.ErrorIs(t, err, ErrMissingQuizID)

	_, err = engine.RecordQuizAttempt(RecordAttemptInput{SchoolID: 1, QuizID: 1})
	assert.ErrorIs(t, err, ErrMissingUserEmail)

	_, err = engine.RecordQuizAttempt(RecordAttemptInput{SchoolID: 1, QuizID: 1, UserEmail: "not-an-email"})
	assert.ErrorIs(t, err, ErrMissingUserEmail)

	assert.Empty(t, f.attempts, "rejected attempts never persist")
}

func TestRecordQuizAttemptClampsScore(t *testing.T) {
	f := newFakeStore(true)
	engine := NewEngine(f)

	id, err := engine.RecordQuizAttempt(RecordAttemptInput{
		SchoolID: 1, QuizID: 1, UserEmail: "a@b.test", Score: 150, Passed: true,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	_, err = engine.RecordQuizAttempt(RecordAttemptInput{
		SchoolID: 1, QuizID: 1, UserEmail: "a@b.test", Score: -5,
	})
	require.NoError(t, err)

	require.Len(t, f.attempts, 2)
	assert.Equal(t, 100, f.attempts[0].Score)
	assert.True(t, f.attempts[0].Passed)
	assert.Equal(t, 0, f.attempts[1].Score)
	assert.JSONEq(t, `[]`, string(f.attempts[0].Answers))
	assert.Equal(t, uint(1), f.attempts[0].SchoolID)
}

func TestNormalizeQuestionVariants(t *testing.T) {
	t.Run("legacy field names", func(t *testing.T) {
		q := NormalizeQuestion(RawQuestion{
			Prompt:       "why",
			PromptHebrew: "למה",
			Choices:      []string{"x", "y"},
			Rationale:    "because",
		})
		assert.Equal(t, "why", q.Question)
		assert.Equal(t, "למה", q.QuestionHebrew)
		assert.Equal(t, []string{"x", "y"}, q.Options)
		assert.Equal(t, "because", q.Explanation)
		assert.Equal(t, 1, q.Points)
	})

	t.Run("correct index resolves to option text", func(t *testing.T) {
		idx := 1
		q := NormalizeQuestion(RawQuestion{Question: "q", Options: []string{"x", "y"}, CorrectIndex: &idx})
		assert.Equal(t, "y", q.CorrectAnswer)
	})

	t.Run("out of range correct index", func(t *testing.T) {
		idx := 7
		q := NormalizeQuestion(RawQuestion{Question: "q", Options: []string{"x", "y"}, CorrectIndex: &idx})
		assert.Empty(t, q.CorrectAnswer)
		assert.True(t, q.IsValid())
	})

	t.Run("negative index", func(t *testing.T) {
		idx := -1
		q := NormalizeQuestion(RawQuestion{Question: "q", Options: []string{"x", "y"}, CorrectOption: &idx})
		assert.Empty(t, q.CorrectAnswer)
	})

	t.Run("answer text preferred over index", func(t *testing.T) {
		idx := 0
		q := NormalizeQuestion(RawQuestion{Question: "q", Options: []string{"x", "y"}, CorrectAnswerCamel: "y", CorrectIndex: &idx})
		assert.Equal(t, "y", q.CorrectAnswer)
	})

	t.Run("invalid without options", func(t *testing.T) {
		q := NormalizeQuestion(RawQuestion{Question: "q"})
		assert.False(t, q.IsValid())
	})
}
