package task

import (
	"context"
	"fmt"

	"communibot/internal/community"
)

// Classifier maps free-form text onto the closed task vocabulary using a
// completion oracle. It is a pure translation layer: the oracle proposes a
// task, it never executes one.
type Classifier struct {
	oracle Oracle
}

// NewClassifier returns a Classifier backed by oracle.
func NewClassifier(oracle Oracle) *Classifier {
	return &Classifier{oracle: oracle}
}

// Classify builds the deterministic instruction block for the candidate
// communities, submits it with the user's text as one exchange, and decodes
// the response into exactly one task variant.
//
// Empty, unparseable, or array-shaped responses surface as ErrOracleContract:
// that is a programming-contract violation by the oracle, not a normal user
// error, and it terminates the command instead of degrading to an error task.
func (c *Classifier) Classify(ctx context.Context, freeText string, candidates []*community.Community) (Args, error) {
	instructions := BuildInstructions(Registry(), candidates)

	out, err := c.oracle.Complete(ctx, instructions, freeText)
	if err != nil {
		return nil, fmt.Errorf("task: classification call: %w", err)
	}

	return Decode([]byte(out))
}
