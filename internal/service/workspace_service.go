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

// WorkspaceService 提供工作区的创建、查询与成员管理能力。
type WorkspaceService struct {
	workspaceRepo repository.WorkspaceRepository
}

// NewWorkspaceService 创建一个新的 WorkspaceService 实例。
func NewWorkspaceService(workspaceRepo repository.WorkspaceRepository) *WorkspaceService {
	return &WorkspaceService{workspaceRepo: workspaceRepo}
}

// Create 创建工作区并把创建者加入为成员。
func (s *WorkspaceService) Create(userID, name string) (*model.Workspace, error) {
	workspace := &model.Workspace{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.workspaceRepo.Create(workspace); err != nil {
		return nil, err
	}
	assoc := &model.WorkspaceUser{UserID: userID, WorkspaceID: workspace.ID}
	if err := s.workspaceRepo.AddMember(assoc); err != nil {
		return nil, err
	}
	log.Infof("工作区创建成功, name: %s, userID: %s", name, userID)
	return workspace, nil
}

// List 列出用户加入的全部工作区。
func (s *WorkspaceService) List(userID string) ([]model.Workspace, error) {
	return s.workspaceRepo.FindByUser(userID)
}

// Join 将用户加入工作区，工作区不存在时返回 ErrNotFound。
func (s *WorkspaceService) Join(userID, workspaceID string) error {
	if _, err := s.workspaceRepo.FindByID(workspaceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if _, err := s.workspaceRepo.FindMembership(userID, workspaceID); err == nil {
		return nil // 已是成员，操作幂等
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.workspaceRepo.AddMember(&model.WorkspaceUser{UserID: userID, WorkspaceID: workspaceID})
}

// IsMember 判断用户是否为工作区成员。
func (s *WorkspaceService) IsMember(userID, workspaceID string) (bool, error) {
	_, err := s.workspaceRepo.FindMembership(userID, workspaceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
