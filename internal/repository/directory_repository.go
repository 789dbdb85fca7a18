package repository

import (
	"context"
	"fmt"

	"github.com/john2100013/kpi-review/internal/models"
)

// Recipients groups the contactable users of one company by role.
type Recipients struct {
	Managers  []models.User
	Employees []models.User
	HR        []models.User
}

// Total returns the number of users across all roles.
func (r Recipients) Total() int {
	return len(r.Managers) + len(r.Employees) + len(r.HR)
}

// DirectoryRepository resolves tenants and their members.
type DirectoryRepository struct {
	db *DB
}

// NewDirectoryRepository creates a new directory repository.
func NewDirectoryRepository(db *DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// CreateCompany creates a new company.
func (r *DirectoryRepository) CreateCompany(ctx context.Context, company *models.Company) error {
	if err := r.db.WithContext(ctx).Create(company).Error; err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// CreateUser creates a new user.
func (r *DirectoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// AddMembership links a user to an additional company.
func (r *DirectoryRepository) AddMembership(ctx context.Context, userID, companyID uint, primary bool) error {
	link := &models.UserCompany{UserID: userID, CompanyID: companyID, IsPrimary: primary}
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		return fmt.Errorf("failed to add user %d to company %d: %w", userID, companyID, err)
	}
	return nil
}

// ListCompanies retrieves all companies ordered by ID.
func (r *DirectoryRepository) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if err := r.db.WithContext(ctx).Order("id").Find(&companies).Error; err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

// GetUser retrieves a user by ID.
func (r *DirectoryRepository) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by id %d: %w", id, err)
	}
	return &user, nil
}

// GetUserInCompany retrieves a user who belongs to the company either by
// home company or by membership.
func (r *DirectoryRepository) GetUserInCompany(ctx context.Context, companyID, userID uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		Where("(company_id = ? OR id IN (SELECT user_id FROM user_companies WHERE company_id = ?))", companyID, companyID).
		First(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d in company %d: %w", userID, companyID, err)
	}
	return &user, nil
}

// IsValidManager reports whether managerID may manage employees of the company.
func (r *DirectoryRepository) IsValidManager(ctx context.Context, companyID, managerID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND role IN ?", managerID, []string{models.RoleManager, models.RoleHR}).
		Where("(company_id = ? OR id IN (SELECT user_id FROM user_companies WHERE company_id = ?))", companyID, companyID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check manager %d: %w", managerID, err)
	}
	return count > 0, nil
}

// HRUsers returns the contactable HR users of a company.
func (r *DirectoryRepository) HRUsers(ctx context.Context, companyID uint) ([]models.User, error) {
	recipients, err := r.RecipientsByCompany(ctx, []uint{companyID})
	if err != nil {
		return nil, err
	}
	return recipients[companyID].HR, nil
}

// RecipientsByCompany loads the contactable managers, employees and HR users
// of every requested company in two queries. Users without a usable email
// address are left out.
func (r *DirectoryRepository) RecipientsByCompany(ctx context.Context, companyIDs []uint) (map[uint]Recipients, error) {
	result := make(map[uint]Recipients, len(companyIDs))
	if len(companyIDs) == 0 {
		return result, nil
	}

	var links []models.UserCompany
	if err := r.db.WithContext(ctx).Where("company_id IN ?", companyIDs).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to load company memberships: %w", err)
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role IN ?", []string{models.RoleManager, models.RoleEmployee, models.RoleHR}).
		Where("(company_id IN ? OR id IN (SELECT user_id FROM user_companies WHERE company_id IN ?))", companyIDs, companyIDs).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load company users: %w", err)
	}

	wanted := make(map[uint]bool, len(companyIDs))
	for _, id := range companyIDs {
		wanted[id] = true
	}
	memberOf := make(map[uint][]uint)
	for _, l := range links {
		memberOf[l.UserID] = append(memberOf[l.UserID], l.CompanyID)
	}

	for _, u := range users {
		if !u.HasContactAddress() {
			continue
		}
		seen := make(map[uint]bool)
		companies := memberOf[u.ID]
		if u.CompanyID != nil {
			companies = append([]uint{*u.CompanyID}, companies...)
		}
		for _, cid := range companies {
			if !wanted[cid] || seen[cid] {
				continue
			}
			seen[cid] = true
			rec := result[cid]
			switch u.Role {
			case models.RoleManager:
				rec.Managers = append(rec.Managers, u)
			case models.RoleEmployee:
				rec.Employees = append(rec.Employees, u)
			case models.RoleHR:
				rec.HR = append(rec.HR, u)
			}
			result[cid] = rec
		}
	}
	return result, nil
}

// UsersByID loads users keyed by ID.
func (r *DirectoryRepository) UsersByID(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
