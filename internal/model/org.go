package model

import "time"

// 组织层级中的成员角色。
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Organization 对应于数据库中的 'organizations' 表，是组织层级的顶层。
type Organization struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Organization) TableName() string {
	return "organizations"
}

// Department 对应于 'departments' 表，隶属于一个组织。
type Department struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	OrganizationID string    `gorm:"type:char(36);index;not null" json:"organizationId"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Department) TableName() string {
	return "departments"
}

// Team 对应于 'teams' 表，隶属于一个部门。
type Team struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	DepartmentID string    `gorm:"type:char(36);index;not null" json:"departmentId"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Team) TableName() string {
	return "teams"
}

// UserOrganization 记录用户在组织中的成员关系与角色。
type UserOrganization struct {
	UserID         string `gorm:"type:char(36);primaryKey" json:"userId"`
	OrganizationID string `gorm:"type:char(36);primaryKey" json:"organizationId"`
	Role           string `gorm:"type:varchar(32);not null;default:member" json:"role"`
}

func (UserOrganization) TableName() string {
	return "user_organizations"
}

// UserDepartment 记录用户在部门中的成员关系与角色。
type UserDepartment struct {
	UserID       string `gorm:"type:char(36);primaryKey" json:"userId"`
	DepartmentID string `gorm:"type:char(36);primaryKey" json:"departmentId"`
	Role         string `gorm:"type:varchar(32);not null;default:member" json:"role"`
}

func (UserDepartment) TableName() string {
	return "user_departments"
}

// UserTeam 记录用户在团队中的成员关系与角色。
type UserTeam struct {
	UserID string `gorm:"type:char(36);primaryKey" json:"userId"`
	TeamID string `gorm:"type:char(36);primaryKey" json:"teamId"`
	Role   string `gorm:"type:varchar(32);not null;default:member" json:"role"`
}

func (UserTeam) TableName() string {
	return "user_teams"
}
