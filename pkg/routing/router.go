package routing

import (
	"errors"

	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/directory"
	"lead-response-engine/pkg/models"
)

// ErrNoAssigneeAvailable signals an empty candidate list for a role tier. The
// escalation engine treats it as "skip to the next tier immediately", not as
// a failure.
var ErrNoAssigneeAvailable = errors.New("no assignee available")

// Router picks the single best available team member for a lead at a given
// role tier. Selection is fully deterministic: the directory's ordering
// decides, and the first candidate wins.
type Router struct {
	directory *directory.Directory
	logger    *logrus.Logger
}

func New(dir *directory.Directory, logger *logrus.Logger) *Router {
	return &Router{directory: dir, logger: logger}
}

// SelectAssignee returns the member ID to notify for the lead at the role
// tier, or ErrNoAssigneeAvailable when nobody at that tier can take it.
func (r *Router) SelectAssignee(lead models.Lead, role models.Role) (string, error) {
	candidates := r.directory.CandidatesForRole(role, lead)
	if len(candidates) == 0 {
		r.logger.WithFields(logrus.Fields{
			"lead_id": lead.ID,
			"role":    role,
		}).Debug("No candidates for role")
		return "", ErrNoAssigneeAvailable
	}

	assignee := candidates[0]
	r.logger.WithFields(logrus.Fields{
		"lead_id":    lead.ID,
		"role":       role,
		"assignee":   assignee,
		"candidates": len(candidates),
	}).Debug("Selected assignee")

	return assignee, nil
}

// Candidates exposes the full ordered candidate list for a role, used by the
// final exhaustion broadcast.
func (r *Router) Candidates(lead models.Lead, role models.Role) []string {
	return r.directory.CandidatesForRole(role, lead)
}
