package directory

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/models"
)

// MemberSource is the capability a store-backed availability provider
// implements. The built-in Directory satisfies it from memory; a host can
// swap in an implementation backed by the CRM data store.
type MemberSource interface {
	IsMemberAvailable(memberID string) bool
	CurrentWorkload(memberID string) int
}

// Directory tracks which team members can receive a lead right now. Reads are
// concurrent across all active cases; writes arrive only from the host CRM
// (shift changes, manual toggles, workload updates).
type Directory struct {
	mu      sync.RWMutex
	members map[string]models.TeamMember
	logger  *logrus.Logger
}

func New(logger *logrus.Logger) *Directory {
	return &Directory{
		members: make(map[string]models.TeamMember),
		logger:  logger,
	}
}

// Upsert adds or replaces a team member record
func (d *Directory) Upsert(member models.TeamMember) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.members[member.ID] = member

	d.logger.WithFields(logrus.Fields{
		"member_id": member.ID,
		"role":      member.Role,
		"available": member.Available,
	}).Debug("Team member upserted")
}

// Remove drops a team member from the directory
func (d *Directory) Remove(memberID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.members, memberID)
}

// SetAvailability flips the availability flag for a member
func (d *Directory) SetAvailability(memberID string, available bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	member, ok := d.members[memberID]
	if !ok {
		return false
	}
	member.Available = available
	d.members[memberID] = member

	d.logger.WithFields(logrus.Fields{
		"member_id": memberID,
		"available": available,
	}).Info("Availability changed")
	return true
}

// SetWorkload updates the active workload count for a member
func (d *Directory) SetWorkload(memberID string, workload int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	member, ok := d.members[memberID]
	if !ok {
		return false
	}
	member.Workload = workload
	d.members[memberID] = member
	return true
}

// Get returns a member snapshot
func (d *Directory) Get(memberID string) (models.TeamMember, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	member, ok := d.members[memberID]
	return member, ok
}

// IsMemberAvailable reports whether the member can take a lead right now
func (d *Directory) IsMemberAvailable(memberID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	member, ok := d.members[memberID]
	return ok && member.Available
}

// CurrentWorkload returns the member's active workload count
func (d *Directory) CurrentWorkload(memberID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.members[memberID].Workload
}

// CandidatesForRole returns available members of the role ordered by lowest
// workload, then best territory/skill match for the lead, then member ID.
// The ordering is fully deterministic for identical directory state.
func (d *Directory) CandidatesForRole(role models.Role, lead models.Lead) []string {
	d.mu.RLock()
	candidates := make([]models.TeamMember, 0)
	for _, member := range d.members {
		if member.Role == role && member.Available {
			candidates = append(candidates, member)
		}
	}
	d.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Workload != b.Workload {
			return a.Workload < b.Workload
		}
		am, bm := matchScore(a, lead), matchScore(b, lead)
		if am != bm {
			return am > bm
		}
		return a.ID < b.ID
	})

	ids := make([]string, len(candidates))
	for i, member := range candidates {
		ids[i] = member.ID
	}
	return ids
}

// matchScore rewards territory coverage over skill fit
func matchScore(member models.TeamMember, lead models.Lead) int {
	score := 0
	for _, territory := range member.Territories {
		if territory == lead.Attributes.Territory {
			score += 2
			break
		}
	}
	for _, skill := range member.Skills {
		if skill == lead.Attributes.ServiceNeeded {
			score++
			break
		}
	}
	return score
}
