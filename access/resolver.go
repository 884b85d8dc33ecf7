package access

import (
	"strings"
	"time"

	"lomda/models"
)

// Course access levels (modern model).
const (
	CourseFree    = "FREE"
	CoursePaid    = "PAID"
	CoursePrivate = "PRIVATE"
)

// Legacy subscription tiers, ordered free < premium < elite.
var tierRank = map[string]int{
	"free":    0,
	"premium": 1,
	"elite":   2,
}

// ResolveInput carries everything the resolver needs; it never fetches.
// Tenant scoping happened upstream: Course/Lesson/Quiz are nil when no
// record exists for the caller's school.
type ResolveInput struct {
	Course           *models.Course
	Lesson           *models.Lesson // set when resolving a specific lesson
	Quiz             *models.Quiz   // set when resolving a quiz
	Role             string
	Entitlements     []models.Entitlement
	SubscriptionTier string // legacy tier, empty = free
	Policy           *models.ContentProtectionPolicy
	EnrollDate       *time.Time // nil = no enrollment event recorded
	Now              time.Time
}

// Resolve computes the single authoritative access decision. First match
// wins: not-found, teacher bypass, modern entitlement model, legacy tier
// fallback, preview eligibility, then the drip downgrade on top of FULL.
func Resolve(in ResolveInput) Level {
	if in.Quiz != nil {
		return resolveQuiz(in)
	}
	if in.Course == nil {
		return NotFound
	}
	if in.Lesson != nil && in.Lesson.CourseID != in.Course.ID {
		return NotFound
	}

	if IsTeacherRole(in.Role) {
		return Full
	}

	level := resolveBase(in)

	// Drip only downgrades an otherwise-FULL lesson, and only when we
	// actually know when the user enrolled.
	if level == Full && in.Lesson != nil && in.EnrollDate != nil {
		availability := ComputeLessonAvailability(in.Lesson, *in.EnrollDate, in.Now)
		if !availability.IsAvailable {
			return DripLocked
		}
	}
	return level
}

func resolveBase(in ResolveInput) Level {
	course := in.Course

	switch strings.ToUpper(course.AccessLevel) {
	case CourseFree:
		return Full
	case CoursePaid, CoursePrivate:
		if HasCourseEntitlement(in.Entitlements, course.ID, in.Now) {
			return Full
		}
	default:
		// Legacy tier model: no access_level set on the course.
		if tierAllows(course.AccessTier, in.SubscriptionTier) {
			return Full
		}
	}

	if previewable(in) {
		return Preview
	}
	return Locked
}

func resolveQuiz(in ResolveInput) Level {
	if IsTeacherRole(in.Role) {
		return Full
	}
	quiz := in.Quiz
	if quiz.CourseID == nil {
		// Standalone quizzes are not gated by any course.
		return Full
	}
	if in.Course == nil || in.Course.ID != *quiz.CourseID {
		return NotFound
	}
	return resolveBase(in)
}

func tierAllows(courseTier, userTier string) bool {
	course, ok := tierRank[strings.ToLower(courseTier)]
	if !ok {
		course = 0
	}
	user, ok := tierRank[strings.ToLower(userTier)]
	if !ok {
		user = 0
	}
	return user >= course
}

func previewable(in ResolveInput) bool {
	policy := EffectivePolicy(in.Policy)
	if !policy.AllowPreviews {
		return false
	}
	if in.Lesson != nil {
		return in.Lesson.IsPreview
	}
	if in.Quiz != nil {
		return in.Quiz.PreviewLimitQuestions > 0
	}
	return false
}
