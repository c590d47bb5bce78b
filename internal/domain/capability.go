package domain

type Capability string

const (
	CapCreateRequest      Capability = "create_request"
	CapApproveWithinQuota Capability = "approve_within_quota"
	CapApproveUnlimited   Capability = "approve_unlimited"
	CapCorrectOpen        Capability = "correct_open"
	CapAdminister         Capability = "administer"
	CapViewAll            Capability = "view_all"
	CapExport             Capability = "export"
	CapManageUsers        Capability = "manage_users"
)

var roleCapabilities = map[Role][]Capability{
	RoleEmployee:          {CapCreateRequest},
	RoleGroupLeader:       {CapCreateRequest, CapApproveWithinQuota},
	RoleTeamManager:       {CapCreateRequest, CapApproveWithinQuota},
	RoleProductionManager: {CapCreateRequest, CapApproveWithinQuota},
	RoleQualityManager:    {CapCreateRequest, CapApproveWithinQuota},
	RoleLogisticsManager:  {CapCreateRequest, CapApproveWithinQuota},
	RolePlantManager:      {CapCreateRequest, CapApproveUnlimited, CapViewAll, CapExport},
	RoleHR:                {CapCreateRequest, CapCorrectOpen, CapViewAll, CapExport},
	RoleAdmin:             {CapCreateRequest, CapApproveUnlimited, CapAdminister, CapViewAll, CapExport, CapManageUsers},
}

type CapabilitySet map[Capability]struct{}

// Capabilities 将角色列表一次性解析为能力集合，未知角色不授予任何能力
func Capabilities(roles []Role) CapabilitySet {
	set := CapabilitySet{}
	for _, r := range roles {
		for _, c := range roleCapabilities[r] {
			set[c] = struct{}{}
		}
	}
	return set
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func (s CapabilitySet) CanApprove() bool {
	return s.Has(CapApproveWithinQuota) || s.Has(CapApproveUnlimited)
}
