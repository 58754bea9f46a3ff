package model

import "time"

// Workspace 对应于数据库中的 'workspaces' 表。
type Workspace struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

// WorkspaceUser 记录用户与工作区的成员关系。
type WorkspaceUser struct {
	UserID      string `gorm:"type:char(36);primaryKey" json:"userId"`
	WorkspaceID string `gorm:"type:char(36);primaryKey" json:"workspaceId"`
}

func (WorkspaceUser) TableName() string {
	return "workspace_users"
}
