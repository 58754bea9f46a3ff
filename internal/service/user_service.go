package service

import (
	"errors"
	"time"

	"ragspace-go/internal/model"
	"ragspace-go/internal/repository"
	"ragspace-go/pkg/hash"
	"ragspace-go/pkg/log"
	"ragspace-go/pkg/token"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserService 提供用户注册、登录与查询能力。
type UserService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) *UserService {
	return &UserService{userRepo: userRepo, jwtManager: jwtManager}
}

// Register 注册新用户，邮箱重复时返回 ErrConflict。
func (s *UserService) Register(email, password, fullName string) (*model.User, error) {
	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: hashed,
		FullName:       fullName,
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	log.Infof("用户注册成功, email: %s", email)
	return user, nil
}

// Login 校验凭证并签发访问令牌与刷新令牌。
func (s *UserService) Login(email, password string) (accessToken, refreshToken string, user *model.User, err error) {
	user, err = s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, err
	}
	if !user.IsActive {
		return "", "", nil, ErrInvalidCredentials
	}
	if !hash.CheckPassword(password, user.HashedPassword) {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err = s.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", "", nil, err
	}
	refreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return "", "", nil, err
	}
	return accessToken, refreshToken, user, nil
}

// GetByID 根据 ID 查询用户，不存在时返回 ErrNotFound。
func (s *UserService) GetByID(id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}
