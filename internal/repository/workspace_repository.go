package repository

import (
	"ragspace-go/internal/model"

	"gorm.io/gorm"
)

// WorkspaceRepository 接口定义了工作区及其成员关系的数据操作。
type WorkspaceRepository interface {
	Create(workspace *model.Workspace) error
	FindByID(id string) (*model.Workspace, error)
	FindByUser(userID string) ([]model.Workspace, error)
	FindMembership(userID, workspaceID string) (*model.WorkspaceUser, error)
	AddMember(assoc *model.WorkspaceUser) error
}

type workspaceRepository struct {
	db *gorm.DB
}

// NewWorkspaceRepository 创建一个新的 WorkspaceRepository 实例。
func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

// Create 在数据库中插入一个新的工作区记录。
func (r *workspaceRepository) Create(workspace *model.Workspace) error {
	return r.db.Create(workspace).Error
}

// FindByID 根据 ID 查找工作区。
func (r *workspaceRepository) FindByID(id string) (*model.Workspace, error) {
	var workspace model.Workspace
	err := r.db.Where("id = ?", id).First(&workspace).Error
	if err != nil {
		return nil, err
	}
	return &workspace, nil
}

// FindByUser 列出用户加入的全部工作区。
func (r *workspaceRepository) FindByUser(userID string) ([]model.Workspace, error) {
	var workspaces []model.Workspace
	err := r.db.
		Joins("JOIN workspace_users ON workspace_users.workspace_id = workspaces.id").
		Where("workspace_users.user_id = ?", userID).
		Find(&workspaces).Error
	return workspaces, err
}

// FindMembership 查找用户与工作区的成员关系。
func (r *workspaceRepository) FindMembership(userID, workspaceID string) (*model.WorkspaceUser, error) {
	var assoc model.WorkspaceUser
	err := r.db.Where("user_id = ? AND workspace_id = ?", userID, workspaceID).First(&assoc).Error
	if err != nil {
		return nil, err
	}
	return &assoc, nil
}

// AddMember 将用户加入工作区。
func (r *workspaceRepository) AddMember(assoc *model.WorkspaceUser) error {
	return r.db.Create(assoc).Error
}
