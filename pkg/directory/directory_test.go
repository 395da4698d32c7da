package directory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-response-engine/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testLead(territory, service string) models.Lead {
	return models.Lead{
		ID: "lead_1",
		Attributes: models.LeadAttributes{
			Territory:     territory,
			ServiceNeeded: service,
		},
	}
}

func TestDirectory_CandidatesForRole_Ordering(t *testing.T) {
	d := New(testLogger())

	d.Upsert(models.TeamMember{ID: "rep_busy", Role: models.RoleSalesRep, Available: true, Workload: 5})
	d.Upsert(models.TeamMember{ID: "rep_idle", Role: models.RoleSalesRep, Available: true, Workload: 0})
	d.Upsert(models.TeamMember{ID: "rep_offline", Role: models.RoleSalesRep, Available: false, Workload: 0})
	d.Upsert(models.TeamMember{ID: "mgr_1", Role: models.RoleManager, Available: true, Workload: 0})

	candidates := d.CandidatesForRole(models.RoleSalesRep, testLead("north", "shingle"))

	require.Len(t, candidates, 2)
	assert.Equal(t, "rep_idle", candidates[0])
	assert.Equal(t, "rep_busy", candidates[1])
	assert.NotContains(t, candidates, "rep_offline")
	assert.NotContains(t, candidates, "mgr_1")
}

func TestDirectory_CandidatesForRole_TerritoryBreaksWorkloadTie(t *testing.T) {
	d := New(testLogger())

	d.Upsert(models.TeamMember{
		ID: "rep_south", Role: models.RoleSalesRep, Available: true, Workload: 2,
		Territories: []string{"south"},
	})
	d.Upsert(models.TeamMember{
		ID: "rep_north", Role: models.RoleSalesRep, Available: true, Workload: 2,
		Territories: []string{"north"},
	})

	candidates := d.CandidatesForRole(models.RoleSalesRep, testLead("north", "metal"))

	require.Len(t, candidates, 2)
	assert.Equal(t, "rep_north", candidates[0])
}

func TestDirectory_CandidatesForRole_IDBreaksFinalTie(t *testing.T) {
	d := New(testLogger())

	d.Upsert(models.TeamMember{ID: "rep_b", Role: models.RoleSalesRep, Available: true})
	d.Upsert(models.TeamMember{ID: "rep_a", Role: models.RoleSalesRep, Available: true})

	lead := testLead("", "")
	for i := 0; i < 20; i++ {
		candidates := d.CandidatesForRole(models.RoleSalesRep, lead)
		require.Len(t, candidates, 2)
		assert.Equal(t, "rep_a", candidates[0])
	}
}

func TestDirectory_SetAvailability(t *testing.T) {
	d := New(testLogger())
	d.Upsert(models.TeamMember{ID: "rep_1", Role: models.RoleSalesRep, Available: true})

	assert.True(t, d.IsMemberAvailable("rep_1"))
	require.True(t, d.SetAvailability("rep_1", false))
	assert.False(t, d.IsMemberAvailable("rep_1"))

	assert.False(t, d.SetAvailability("missing", true))
	assert.False(t, d.IsMemberAvailable("missing"))
}

func TestDirectory_ConcurrentReadsAndWrites(t *testing.T) {
	d := New(testLogger())
	for i := 0; i < 10; i++ {
		d.Upsert(models.TeamMember{
			ID:        fmt.Sprintf("rep_%d", i),
			Role:      models.RoleSalesRep,
			Available: true,
		})
	}

	lead := testLead("north", "shingle")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.SetWorkload(fmt.Sprintf("rep_%d", n), j)
				d.SetAvailability(fmt.Sprintf("rep_%d", n), j%2 == 0)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.CandidatesForRole(models.RoleSalesRep, lead)
				d.IsMemberAvailable("rep_0")
			}
		}()
	}
	wg.Wait()
}
