package seed

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/bruss-it/overtime-manager/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserStore struct {
	existing map[string]bool
	created  []*domain.User
	failOn   string
}

func (f *fakeUserStore) CheckEmailIfExists(email string) (bool, error) {
	return f.existing[email], nil
}

func (f *fakeUserStore) CreateUser(user *domain.User) error {
	if user.Email == f.failOn {
		return errors.New("duplicate key")
	}
	f.created = append(f.created, user)
	return nil
}

func TestImportUsers(t *testing.T) {
	input := strings.Join([]string{
		"full_name,email,department,roles",
		"Łukasz Wiśniewski,lukasz.w@bruss.local,Lakiernia,employee",
		"Anna Nowak,anna.nowak@bruss.local,Produkcja,group-leader; hr",
		"Jan Kowalski,jan.kowalski@bruss.local,Produkcja,",
		"Ewa Mazur,ewa.mazur@bruss.local,Jakość,janitor",
		",missing@bruss.local,Produkcja,employee",
		"Piotr Zieliński,piotr@bruss.local,Logistyka,employee",
	}, "\n")

	store := &fakeUserStore{existing: map[string]bool{"piotr@bruss.local": true}}

	created, err := ImportUsers(store, strings.NewReader(input), "hash")
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	require.Len(t, store.created, 3)

	first := store.created[0]
	assert.Equal(t, "lukasz.wisniewski", first.Username)
	assert.Equal(t, "Łukasz Wiśniewski", first.FullName)
	assert.Equal(t, "Lakiernia", first.Department)
	assert.Equal(t, "hash", first.PasswordHash)
	assert.True(t, first.IsActive)

	assert.Equal(t, []domain.Role{domain.RoleGroupLeader, domain.RoleHR}, store.created[1].Roles)
	// 没有填写角色时默认为普通员工
	assert.Equal(t, []domain.Role{domain.RoleEmployee}, store.created[2].Roles)
}

func TestImportUsers_MissingColumn(t *testing.T) {
	_, err := ImportUsers(&fakeUserStore{}, strings.NewReader("full_name,email\nAnna Nowak,anna@bruss.local\n"), "hash")
	assert.Error(t, err)
}

func TestImportUsers_CreateFailureSkipsRow(t *testing.T) {
	input := "full_name,email,department,roles\nAnna Nowak,anna@bruss.local,,\nJan Kowalski,jan@bruss.local,,\n"
	store := &fakeUserStore{failOn: "anna@bruss.local"}

	created, err := ImportUsers(store, strings.NewReader(input), "hash")
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestRandomOvertime_IsValid(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		in := RandomOvertime(2, now)
		o := &domain.OvertimeRequest{
			Hours:           in.Hours,
			Payment:         in.Payment,
			WorkDate:        in.WorkDate,
			ScheduledDayOff: in.ScheduledDayOff,
			WorkStartTime:   in.WorkStartTime,
			WorkEndTime:     in.WorkEndTime,
		}
		require.NoError(t, utils.ValidateOvertimeSchedule(o))
		assert.Equal(t, int64(2), in.SupervisorID)
	}
}
