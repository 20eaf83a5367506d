package service

import (
	"errors"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/repository"
	"quiz_platform_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	UserRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{UserRepo: userRepo}
}

func (s *UserService) Get(id uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(page, limit int, role model.UserRole, keyword string) ([]model.User, int64, error) {
	return s.UserRepo.List(page, limit, role, keyword)
}

// StudentIDs returns the ids of every enabled student account.
func (s *UserService) StudentIDs() ([]uint, error) {
	return s.UserRepo.ListIDsByRole(model.Student)
}

type ProfileUpdate struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Avatar   string `json:"avatar"`
}

func (s *UserService) UpdateProfile(userID uint, update *ProfileUpdate) (*model.User, error) {
	user, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	if update.Name != "" {
		user.Name = update.Name
	}
	if update.Language != "" {
		user.Language = update.Language
	}
	if update.Avatar != "" {
		user.Avatar = update.Avatar
	}
	if err := s.UserRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.Get(userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return errors.New("invalid credentials")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashed)
	return s.UserRepo.Update(user)
}

func (s *UserService) SetRole(userID uint, role model.UserRole) error {
	user, err := s.Get(userID)
	if err != nil {
		return err
	}
	user.Role = role
	return s.UserRepo.Update(user)
}

func (s *UserService) SetDisabled(userID uint, disabled bool) error {
	if _, err := s.Get(userID); err != nil {
		return err
	}
	return s.UserRepo.SetDisabled(userID, disabled)
}

func (s *UserService) Delete(userID uint) error {
	if _, err := s.Get(userID); err != nil {
		return err
	}
	return s.UserRepo.Delete(userID)
}
