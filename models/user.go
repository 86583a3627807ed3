package models

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID          int        `gorm:"primary_key" json:"id"`
	TenantId    string     `gorm:"size:64;index;not null" json:"tenant_id"`
	CompanyId   string     `gorm:"size:64;index;not null" json:"company_id"`
	Email       string     `gorm:"size:100;not null;uniqueIndex" json:"email"`
	FirstName   string     `gorm:"size:100;not null" json:"first_name"`
	LastName    string     `gorm:"size:100" json:"last_name"`
	Password    string     `gorm:"size:255;not null" json:"password,omitempty"`
	Role        UserRole   `gorm:"size:20;not null;default:'VIEWER'" json:"role"`
	IsActive    *bool      `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Email     string   `json:"email" validate:"required,email"`
	FirstName string   `json:"first_name" validate:"required,max=100"`
	LastName  string   `json:"last_name" validate:"max=100"`
	Password  string   `json:"password" validate:"omitempty,min=8"`
	Role      UserRole `json:"role" validate:"required"`
	IsActive  *bool    `json:"is_active"`
}

type LoginInfo struct {
	Token       string       `json:"token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *User        `json:"user"`
	Company     *Company     `json:"company"`
	Permissions []Permission `json:"permissions"`
}

/*
caches:
	User:$email
	Token:$token -> email
	Tokens:$email (set of live tokens)
*/

func (user *User) FullName() string {
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

func (user *User) PrepareGive() {
	user.Password = ""
}

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Email)
}

// GetUserByEmail is used by the session middleware; it reads through the redis cache.
func GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+email, &user)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		if err := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
			Where("email = ?", email).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.ErrorRecordNotFound
			}
			return nil, err
		}
		if err := config.SetRedisObject("User:"+email, &user, config.TokenLifespan()); err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, utils.InvalidInput("email and password are required")
	}

	db := config.GetDB()
	var user User
	if err := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
		Where("email = ?", email).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", utils.ErrorUnauthorized)
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", utils.ErrorUnauthorized)
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, fmt.Errorf("%w: user is disabled", utils.ErrorUnauthorized)
	}

	company, err := GetCompanyById(ctx, user.CompanyId)
	if err != nil {
		return nil, err
	}

	lifespan := config.TokenLifespan()
	token := uuid.NewString()
	if err := config.AddRedisSet("Tokens:"+user.Email, token); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue("Token:"+token, user.Email, lifespan); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).
		UpdateColumn("last_login_at", now).Error; err != nil {
		config.LogError(config.GetLogger(), "User", "Login", "update last_login_at", user.ID, err)
	}
	user.LastLoginAt = &now
	user.PrepareGive()

	return &LoginInfo{
		Token:       token,
		ExpiresAt:   now.Add(lifespan),
		User:        &user,
		Company:     company,
		Permissions: PermissionsFor(user.Role),
	}, nil
}

// Logout destroys the current session.
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, fmt.Errorf("%w: token is required", utils.ErrorUnauthorized)
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	email, ok := utils.GetUserEmailFromContext(ctx)
	if !ok || email == "" {
		return false, fmt.Errorf("%w: user not found", utils.ErrorUnauthorized)
	}
	if err := config.RemoveRedisSetMember("Tokens:"+email, token); err != nil {
		return false, err
	}
	return true, nil
}

// Me returns the session user with company and permissions.
func Me(ctx context.Context) (*LoginInfo, error) {
	email, ok := utils.GetUserEmailFromContext(ctx)
	if !ok || email == "" {
		return nil, utils.ErrorUnauthorized
	}
	user, err := GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	company, err := GetCompanyById(ctx, user.CompanyId)
	if err != nil {
		return nil, err
	}
	user.PrepareGive()
	token, _ := utils.GetTokenFromContext(ctx)
	return &LoginInfo{Token: token, User: user, Company: company, Permissions: PermissionsFor(user.Role)}, nil
}

func (input *NewUser) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Role.IsValid() {
		return utils.InvalidInput("invalid user role")
	}
	if input.Role == UserRoleSuperAdmin {
		if role, _ := utils.GetUserRoleFromContext(ctx); UserRole(role) != UserRoleSuperAdmin {
			return fmt.Errorf("%w: only a super admin can grant the super admin role", utils.ErrorForbidden)
		}
	}
	if id == 0 && input.Password == "" {
		return utils.InvalidInput("password is required")
	}
	// emails are unique across tenants
	return utils.ValidateUnique[User](utils.SetSkipTenantScopeInContext(ctx, true), "", "email", strings.ToLower(input.Email), id)
}

func ListUsers(ctx context.Context) ([]*User, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	db := config.GetDB()
	var results []*User
	if err := db.WithContext(ctx).Where("company_id = ?", companyId).Order("email").Find(&results).Error; err != nil {
		return nil, err
	}
	for _, u := range results {
		u.PrepareGive()
	}
	return results, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	result, err := utils.FetchModel[User](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	result.PrepareGive()
	return result, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	company, err := GetCompanyById(ctx, companyId)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	user := User{
		TenantId:  company.TenantId,
		CompanyId: companyId,
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		FirstName: html.EscapeString(strings.TrimSpace(input.FirstName)),
		LastName:  html.EscapeString(strings.TrimSpace(input.LastName)),
		Password:  string(hashedPassword),
		Role:      input.Role,
		IsActive:  isActive,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

func UpdateUser(ctx context.Context, id int, input *NewUser) (*User, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	user, err := utils.FetchModel[User](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	oldEmail := user.Email

	updates := map[string]interface{}{
		"Email":     strings.ToLower(strings.TrimSpace(input.Email)),
		"FirstName": html.EscapeString(strings.TrimSpace(input.FirstName)),
		"LastName":  html.EscapeString(strings.TrimSpace(input.LastName)),
		"Role":      input.Role,
	}
	if input.IsActive != nil {
		updates["IsActive"] = *input.IsActive
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := config.RemoveRedisKey("User:" + oldEmail); err != nil {
		return nil, err
	}
	if oldEmail != user.Email || (input.IsActive != nil && !*input.IsActive) {
		if err := destroySessions(oldEmail); err != nil {
			return nil, err
		}
	}
	user.PrepareGive()
	return user, nil
}

// ToggleUserActive enables or disables a login. Disabling ends every session of the user.
func ToggleUserActive(ctx context.Context, id int, isActive bool) (*User, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if currentId, _ := utils.GetUserIdFromContext(ctx); currentId == id && !isActive {
		return nil, utils.InvalidInput("cannot deactivate yourself")
	}
	user, err := utils.FetchModel[User](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(user).UpdateColumn("is_active", isActive).Error; err != nil {
		return nil, err
	}
	user.IsActive = &isActive
	if err := user.RemoveInstanceRedis(); err != nil {
		return nil, err
	}
	if !isActive {
		if err := destroySessions(user.Email); err != nil {
			return nil, err
		}
	}
	user.PrepareGive()
	return user, nil
}

func DeleteUser(ctx context.Context, id int) (*User, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if currentId, _ := utils.GetUserIdFromContext(ctx); currentId == id {
		return nil, utils.InvalidInput("cannot delete yourself")
	}
	user, err := utils.FetchModel[User](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(user).Error; err != nil {
		return nil, err
	}
	if err := user.RemoveInstanceRedis(); err != nil {
		return nil, err
	}
	if err := destroySessions(user.Email); err != nil {
		return nil, err
	}
	user.PrepareGive()
	return user, nil
}

func destroySessions(email string) error {
	allTokens, err := config.GetRedisSetMembers("Tokens:" + email)
	if err != nil {
		return err
	}
	for _, token := range allTokens {
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			return err
		}
	}
	return config.RemoveRedisKey("Tokens:" + email)
}

// ChangePassword checks the old password of the session user and ends all of their sessions.
func ChangePassword(ctx context.Context, oldPassword string, newPassword string) (*User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, fmt.Errorf("%w: user id is required", utils.ErrorUnauthorized)
	}
	if len(newPassword) < utils.MinPasswordLength {
		return nil, utils.ErrPasswordTooShort
	}

	var user User
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&user, userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, oldPassword); err != nil {
		return nil, utils.InvalidInput("old password is wrong")
	}

	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&user).UpdateColumn("password", string(hashedPassword)).Error; err != nil {
		return nil, err
	}
	if err := user.RemoveInstanceRedis(); err != nil {
		return nil, err
	}
	if err := destroySessions(user.Email); err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}
