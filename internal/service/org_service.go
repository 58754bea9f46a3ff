package service

import (
	"errors"
	"time"

	"ragspace-go/internal/model"
	"ragspace-go/internal/repository"
	"ragspace-go/pkg/log"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrgService 提供组织/部门/团队三级层级的管理能力。
// 所有变更操作都要求调用者在相应层级具有 admin 角色。
type OrgService struct {
	orgRepo repository.OrgRepository
}

// NewOrgService 创建一个新的 OrgService 实例。
func NewOrgService(orgRepo repository.OrgRepository) *OrgService {
	return &OrgService{orgRepo: orgRepo}
}

// isOrgAdmin 判断用户是否为组织管理员。
func (s *OrgService) isOrgAdmin(userID, orgID string) (bool, error) {
	assoc, err := s.orgRepo.FindOrgMembership(userID, orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return assoc.Role == model.RoleAdmin, nil
}

// CreateOrganization 创建组织，创建者自动成为管理员。
func (s *OrgService) CreateOrganization(userID, name string) (*model.Organization, error) {
	org := &model.Organization{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.orgRepo.CreateOrganization(org); err != nil {
		return nil, err
	}
	assoc := &model.UserOrganization{
		UserID:         userID,
		OrganizationID: org.ID,
		Role:           model.RoleAdmin,
	}
	if err := s.orgRepo.SaveOrgMembership(assoc); err != nil {
		return nil, err
	}
	log.Infof("组织创建成功, name: %s, userID: %s", name, userID)
	return org, nil
}

// ListOrganizations 列出用户所属的全部组织。
func (s *OrgService) ListOrganizations(userID string) ([]model.Organization, error) {
	return s.orgRepo.FindOrganizationsByUser(userID)
}

// AddOrgMember 将用户加入组织，要求调用者是组织管理员。
func (s *OrgService) AddOrgMember(callerID, orgID, userID, role string) error {
	ok, err := s.isOrgAdmin(callerID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return s.orgRepo.SaveOrgMembership(&model.UserOrganization{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
	})
}

// ListOrgMembers 列出组织的全部成员关系，要求调用者是组织成员。
func (s *OrgService) ListOrgMembers(callerID, orgID string) ([]model.UserOrganization, error) {
	if _, err := s.orgRepo.FindOrgMembership(callerID, orgID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return s.orgRepo.FindOrgMembers(orgID)
}

// CreateDepartment 在组织下创建部门，要求调用者是组织管理员。
// 创建者自动成为部门管理员。
func (s *OrgService) CreateDepartment(callerID, orgID, name string) (*model.Department, error) {
	ok, err := s.isOrgAdmin(callerID, orgID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnauthorized
	}
	dept := &model.Department{
		ID:             uuid.NewString(),
		Name:           name,
		OrganizationID: orgID,
		CreatedAt:      time.Now(),
	}
	if err := s.orgRepo.CreateDepartment(dept); err != nil {
		return nil, err
	}
	assoc := &model.UserDepartment{
		UserID:       callerID,
		DepartmentID: dept.ID,
		Role:         model.RoleAdmin,
	}
	if err := s.orgRepo.SaveDeptMembership(assoc); err != nil {
		return nil, err
	}
	return dept, nil
}

// ListDepartments 列出组织下的全部部门，要求调用者是组织成员。
func (s *OrgService) ListDepartments(callerID, orgID string) ([]model.Department, error) {
	if _, err := s.orgRepo.FindOrgMembership(callerID, orgID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return s.orgRepo.FindDepartmentsByOrganization(orgID)
}

// AddDeptMember 将用户加入部门，要求调用者是部门管理员。
func (s *OrgService) AddDeptMember(callerID, deptID, userID, role string) error {
	assoc, err := s.orgRepo.FindDeptMembership(callerID, deptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if assoc.Role != model.RoleAdmin {
		return ErrUnauthorized
	}
	return s.orgRepo.SaveDeptMembership(&model.UserDepartment{
		UserID:       userID,
		DepartmentID: deptID,
		Role:         role,
	})
}

// CreateTeam 在部门下创建团队，要求调用者是部门管理员。
// 创建者自动成为团队管理员。
func (s *OrgService) CreateTeam(callerID, deptID, name string) (*model.Team, error) {
	assoc, err := s.orgRepo.FindDeptMembership(callerID, deptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if assoc.Role != model.RoleAdmin {
		return nil, ErrUnauthorized
	}
	team := &model.Team{
		ID:           uuid.NewString(),
		Name:         name,
		DepartmentID: deptID,
		CreatedAt:    time.Now(),
	}
	if err := s.orgRepo.CreateTeam(team); err != nil {
		return nil, err
	}
	member := &model.UserTeam{
		UserID: callerID,
		TeamID: team.ID,
		Role:   model.RoleAdmin,
	}
	if err := s.orgRepo.SaveTeamMembership(member); err != nil {
		return nil, err
	}
	return team, nil
}

// ListTeams 列出部门下的全部团队，要求调用者是部门成员。
func (s *OrgService) ListTeams(callerID, deptID string) ([]model.Team, error) {
	if _, err := s.orgRepo.FindDeptMembership(callerID, deptID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return s.orgRepo.FindTeamsByDepartment(deptID)
}

// AddTeamMember 将用户加入团队，要求调用者是团队管理员。
func (s *OrgService) AddTeamMember(callerID, teamID, userID, role string) error {
	assoc, err := s.orgRepo.FindTeamMembership(callerID, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if assoc.Role != model.RoleAdmin {
		return ErrUnauthorized
	}
	return s.orgRepo.SaveTeamMembership(&model.UserTeam{
		UserID: userID,
		TeamID: teamID,
		Role:   role,
	})
}

// ListTeamMembers 列出团队的全部成员关系，要求调用者是团队成员。
func (s *OrgService) ListTeamMembers(callerID, teamID string) ([]model.UserTeam, error) {
	if _, err := s.orgRepo.FindTeamMembership(callerID, teamID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return s.orgRepo.FindTeamMembers(teamID)
}
