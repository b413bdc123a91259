package likert

import (
	"errors"
	"fmt"

	"github.com/sawpanic/surveyrun/internal/survey"
)

var (
	ErrInvalidRank     = errors.New("rank outside domain")
	ErrInvalidQuestion = errors.New("question not in set")
)

// InvalidRankError is returned when a response's rank lies outside the
// transform's rank domain.
type InvalidRankError struct {
	Response survey.Response
	Domain   survey.RankDomain
}

func (e *InvalidRankError) Error() string {
	return fmt.Sprintf("invalid rank %d (participant %q, question %q): outside %s",
		e.Response.Rank, e.Response.Participant, e.Response.Question, e.Domain)
}

func (e *InvalidRankError) Unwrap() error { return ErrInvalidRank }

// InvalidQuestionError is returned when a response names a question the
// transform was not asked to process.
type InvalidQuestionError struct {
	Response survey.Response
}

func (e *InvalidQuestionError) Error() string {
	return fmt.Sprintf("invalid question %q (participant %q)", e.Response.Question, e.Response.Participant)
}

func (e *InvalidQuestionError) Unwrap() error { return ErrInvalidQuestion }
