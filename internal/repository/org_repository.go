package repository

import (
	"ragspace-go/internal/model"

	"gorm.io/gorm"
)

// OrgRepository 接口定义了组织/部门/团队层级及其成员关系的数据操作。
type OrgRepository interface {
	CreateOrganization(org *model.Organization) error
	FindOrganizationByID(id string) (*model.Organization, error)
	FindOrganizationsByUser(userID string) ([]model.Organization, error)

	CreateDepartment(dept *model.Department) error
	FindDepartmentsByOrganization(orgID string) ([]model.Department, error)

	CreateTeam(team *model.Team) error
	FindTeamsByDepartment(deptID string) ([]model.Team, error)

	FindOrgMembership(userID, orgID string) (*model.UserOrganization, error)
	SaveOrgMembership(assoc *model.UserOrganization) error
	FindOrgMembers(orgID string) ([]model.UserOrganization, error)

	FindDeptMembership(userID, deptID string) (*model.UserDepartment, error)
	SaveDeptMembership(assoc *model.UserDepartment) error
	FindDeptMembers(deptID string) ([]model.UserDepartment, error)

	FindTeamMembership(userID, teamID string) (*model.UserTeam, error)
	SaveTeamMembership(assoc *model.UserTeam) error
	FindTeamMembers(teamID string) ([]model.UserTeam, error)
}

type orgRepository struct {
	db *gorm.DB
}

// NewOrgRepository 创建一个新的 OrgRepository 实例。
func NewOrgRepository(db *gorm.DB) OrgRepository {
	return &orgRepository{db: db}
}

// CreateOrganization 在数据库中插入一个新的组织记录。
func (r *orgRepository) CreateOrganization(org *model.Organization) error {
	return r.db.Create(org).Error
}

// FindOrganizationByID 根据 ID 查找组织。
func (r *orgRepository) FindOrganizationByID(id string) (*model.Organization, error) {
	var org model.Organization
	err := r.db.Where("id = ?", id).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// FindOrganizationsByUser 列出用户所属的全部组织。
func (r *orgRepository) FindOrganizationsByUser(userID string) ([]model.Organization, error) {
	var orgs []model.Organization
	err := r.db.
		Joins("JOIN user_organizations ON user_organizations.organization_id = organizations.id").
		Where("user_organizations.user_id = ?", userID).
		Find(&orgs).Error
	return orgs, err
}

// CreateDepartment 在数据库中插入一个新的部门记录。
func (r *orgRepository) CreateDepartment(dept *model.Department) error {
	return r.db.Create(dept).Error
}

// FindDepartmentsByOrganization 列出组织下的全部部门。
func (r *orgRepository) FindDepartmentsByOrganization(orgID string) ([]model.Department, error) {
	var depts []model.Department
	err := r.db.Where("organization_id = ?", orgID).Find(&depts).Error
	return depts, err
}

// CreateTeam 在数据库中插入一个新的团队记录。
func (r *orgRepository) CreateTeam(team *model.Team) error {
	return r.db.Create(team).Error
}

// FindTeamsByDepartment 列出部门下的全部团队。
func (r *orgRepository) FindTeamsByDepartment(deptID string) ([]model.Team, error) {
	var teams []model.Team
	err := r.db.Where("department_id = ?", deptID).Find(&teams).Error
	return teams, err
}

// FindOrgMembership 查找用户在组织中的成员关系。
func (r *orgRepository) FindOrgMembership(userID, orgID string) (*model.UserOrganization, error) {
	var assoc model.UserOrganization
	err := r.db.Where("user_id = ? AND organization_id = ?", userID, orgID).First(&assoc).Error
	if err != nil {
		return nil, err
	}
	return &assoc, nil
}

// SaveOrgMembership 创建或更新组织成员关系。
func (r *orgRepository) SaveOrgMembership(assoc *model.UserOrganization) error {
	return r.db.Save(assoc).Error
}

// FindOrgMembers 列出组织的全部成员关系。
func (r *orgRepository) FindOrgMembers(orgID string) ([]model.UserOrganization, error) {
	var assocs []model.UserOrganization
	err := r.db.Where("organization_id = ?", orgID).Find(&assocs).Error
	return assocs, err
}

// FindDeptMembership 查找用户在部门中的成员关系。
func (r *orgRepository) FindDeptMembership(userID, deptID string) (*model.UserDepartment, error) {
	var assoc model.UserDepartment
	err := r.db.Where("user_id = ? AND department_id = ?", userID, deptID).First(&assoc).Error
	if err != nil {
		return nil, err
	}
	return &assoc, nil
}

// SaveDeptMembership 创建或更新部门成员关系。
func (r *orgRepository) SaveDeptMembership(assoc *model.UserDepartment) error {
	return r.db.Save(assoc).Error
}

// FindDeptMembers 列出部门的全部成员关系。
func (r *orgRepository) FindDeptMembers(deptID string) ([]model.UserDepartment, error) {
	var assocs []model.UserDepartment
	err := r.db.Where("department_id = ?", deptID).Find(&assocs).Error
	return assocs, err
}

// FindTeamMembership 查找用户在团队中的成员关系。
func (r *orgRepository) FindTeamMembership(userID, teamID string) (*model.UserTeam, error) {
	var assoc model.UserTeam
	err := r.db.Where("user_id = ? AND team_id = ?", userID, teamID).First(&assoc).Error
	if err != nil {
		return nil, err
	}
	return &assoc, nil
}

// SaveTeamMembership 创建或更新团队成员关系。
func (r *orgRepository) SaveTeamMembership(assoc *model.UserTeam) error {
	return r.db.Save(assoc).Error
}

// FindTeamMembers 列出团队的全部成员关系。
func (r *orgRepository) FindTeamMembers(teamID string) ([]model.UserTeam, error) {
	var assocs []model.UserTeam
	err := r.db.Where("team_id = ?", teamID).Find(&assocs).Error
	return assocs, err
}
