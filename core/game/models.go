package game

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/shulebox/backend/core"
)

var (
	ErrNotFound = errors.New("game not found")

	scratchSuffixRegex = regexp.MustCompile(`(\d+)/?$`)
)

// Subjects
const (
	SubjectEnglish = "english"
	SubjectMath    = "math"
	SubjectScience = "science"
	SubjectOther   = "other"
)

// Difficulties
const (
	DifficultyBeginner     = "Beginner"
	DifficultyIntermediate = "Intermediate"
	DifficultyAdvanced     = "Advanced"
)

var (
	Subjects     = []string{SubjectEnglish, SubjectMath, SubjectScience, SubjectOther}
	Difficulties = []string{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}
)

func ValidSubject(s string) bool { return contains(Subjects, s) }
func ValidDifficulty(d string) bool { return contains(Difficulties, d) }

func contains(l []string, s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

type Game struct {
	ID               string    `json:"game_id"`
	Name             string    `json:"game_name"`
	StudentID        string    `json:"student_id"`
	Subject          string    `json:"subject"`
	Difficulty       string    `json:"difficulty"`
	TeacherID        string    `json:"teacher_id"`
	ScratchID        string    `json:"scratch_id"`
	ScratchAPI       string    `json:"scratch_api"`
	AccumulatedClick int       `json:"accumulated_click"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

// ScratchProjectID extracts the numeric project suffix of a Scratch URL;
// empty when the URL carries none. By convention Game.ID must equal it.
func ScratchProjectID(url string) string {
	m := scratchSuffixRegex.FindStringSubmatch(core.CleanString(url))
	if m == nil {
		return ""
	}
	return m[1]
}

type QueryFilter struct {
	Subject    string `query:"subject"`
	Difficulty string `query:"difficulty"`
	TeacherID  string `query:"teacher_id"`
	StudentID  string `query:"student_id"`
}

func (f *QueryFilter) Clean() {
	f.Subject = core.CleanString(f.Subject, true /* lower */)
	f.Difficulty = core.CleanString(f.Difficulty)
	f.TeacherID = core.CleanString(f.TeacherID)
	f.StudentID = core.CleanString(f.StudentID)
}

type Repository interface {
	GetGame(ctx context.Context, id string) (Game, error)
	// QueryGames applies AND operation on available QueryFilter fields.
	QueryGames(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Game, error)
	// PutGame inserts or fully replaces a game row.
	PutGame(ctx context.Context, g Game) (Game, error)
	BatchPutGames(ctx context.Context, games []Game) error
	// IncrementClick atomically bumps accumulated_click by 1 and returns the
	// new count. ErrNotFound when the id does not exist. Implementations must
	// not read-modify-write.
	IncrementClick(ctx context.Context, id string) (int, error)
}
