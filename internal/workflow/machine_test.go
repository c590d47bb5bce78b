package workflow

import (
	"testing"

	"github.com/bruss-it/overtime-manager/backend/internal/apperror"
	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	author := &domain.User{ID: 10, Roles: []domain.Role{domain.RoleEmployee}}
	supervisor := &domain.User{ID: 20, Roles: []domain.Role{domain.RoleTeamManager}}
	stranger := &domain.User{ID: 30, Roles: []domain.Role{domain.RoleQualityManager}}
	plant := &domain.User{ID: 40, Roles: []domain.Role{domain.RolePlantManager}}
	hr := &domain.User{ID: 50, Roles: []domain.Role{domain.RoleHR}}
	admin := &domain.User{ID: 60, Roles: []domain.Role{domain.RoleAdmin}}

	tests := []struct {
		name   string
		actor  *domain.User
		status domain.Status
		action Action
		want   error
	}{
		{"author submits draft", author, domain.StatusDraft, ActionSubmit, nil},
		{"supervisor cannot submit", supervisor, domain.StatusDraft, ActionSubmit, apperror.ErrNotAuthor},
		{"author cannot resubmit", author, domain.StatusPending, ActionSubmit, apperror.ErrInvalidTransition},

		{"supervisor approves", supervisor, domain.StatusPending, ActionApprove, nil},
		{"other manager is not the supervisor", stranger, domain.StatusPending, ActionApprove, apperror.ErrNotSupervisor},
		{"plant manager approves any", plant, domain.StatusPending, ActionApprove, nil},
		{"employee cannot approve", author, domain.StatusPending, ActionApprove, apperror.ErrForbidden},
		{"approve twice", supervisor, domain.StatusApproved, ActionApprove, apperror.ErrConflict},
		{"reject after approval", plant, domain.StatusApproved, ActionReject, apperror.ErrConflict},
		{"approve after cancel", supervisor, domain.StatusCancelled, ActionApprove, apperror.ErrConflict},
		{"approve rejected", admin, domain.StatusRejected, ActionApprove, apperror.ErrConflict},
		{"approve draft", supervisor, domain.StatusDraft, ActionApprove, apperror.ErrInvalidTransition},
		{"employee cannot approve resolved", author, domain.StatusApproved, ActionApprove, apperror.ErrForbidden},
		{"hr cannot reject", hr, domain.StatusPending, ActionReject, apperror.ErrForbidden},

		{"author cancels pending", author, domain.StatusPending, ActionCancel, nil},
		{"author cannot cancel approved", author, domain.StatusApproved, ActionCancel, apperror.ErrInvalidTransition},
		{"supervisor cannot cancel", supervisor, domain.StatusPending, ActionCancel, apperror.ErrNotAuthor},
		{"admin cancels approved", admin, domain.StatusApproved, ActionCancel, nil},
		{"admin cannot cancel twice", admin, domain.StatusCancelled, ActionCancel, apperror.ErrInvalidTransition},

		{"author corrects draft", author, domain.StatusDraft, ActionCorrect, nil},
		{"author cannot correct approved", author, domain.StatusApproved, ActionCorrect, apperror.ErrInvalidTransition},
		{"hr corrects approved", hr, domain.StatusApproved, ActionCorrect, nil},
		{"hr cannot correct draft", hr, domain.StatusDraft, ActionCorrect, apperror.ErrInvalidTransition},
		{"supervisor cannot correct", supervisor, domain.StatusPending, ActionCorrect, apperror.ErrForbidden},
		{"admin corrects rejected", admin, domain.StatusRejected, ActionCorrect, nil},

		{"admin accounts approved", admin, domain.StatusApproved, ActionAccount, nil},
		{"admin cannot account pending", admin, domain.StatusPending, ActionAccount, apperror.ErrInvalidTransition},
		{"plant manager cannot account", plant, domain.StatusApproved, ActionAccount, apperror.ErrForbidden},

		{"accounted blocks admin correction", admin, domain.StatusAccounted, ActionCorrect, apperror.ErrAccounted},
		{"accounted blocks admin cancel", admin, domain.StatusAccounted, ActionCancel, apperror.ErrAccounted},
		{"accounted blocks approval", plant, domain.StatusAccounted, ActionApprove, apperror.ErrAccounted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &domain.OvertimeRequest{RequestedBy: author.ID, SupervisorID: supervisor.ID, Status: tt.status}

			err := Authorize(tt.actor, o, tt.action)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCanView(t *testing.T) {
	o := &domain.OvertimeRequest{RequestedBy: 1, SupervisorID: 2}

	assert.True(t, CanView(&domain.User{ID: 1, Roles: []domain.Role{domain.RoleEmployee}}, o))
	assert.True(t, CanView(&domain.User{ID: 2, Roles: []domain.Role{domain.RoleGroupLeader}}, o))
	assert.True(t, CanView(&domain.User{ID: 3, Roles: []domain.Role{domain.RoleHR}}, o))
	assert.False(t, CanView(&domain.User{ID: 4, Roles: []domain.Role{domain.RoleGroupLeader}}, o))
}
