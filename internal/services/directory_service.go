package services

import (
	"context"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/repository"
)

// DirectoryService is the admin-facing catalog: centers, screening
// types and patient profiles.
type DirectoryService struct {
	store repository.Store
}

func NewDirectoryService(store repository.Store) *DirectoryService {
	return &DirectoryService{store: store}
}

func (s *DirectoryService) CreateCenter(ctx context.Context, c models.Center) (models.Center, error) {
	if c.Name == "" {
		return models.Center{}, apperr.Validation("name", "required")
	}
	if c.Bank.BankCode == "" || c.Bank.AccountNumber == "" {
		return models.Center{}, apperr.Validation("bank", "bank_code and account_number required")
	}
	return s.store.Centers().Create(ctx, c)
}

func (s *DirectoryService) ListCenters(ctx context.Context) ([]models.Center, error) {
	return s.store.Centers().List(ctx)
}

func (s *DirectoryService) CreateScreeningType(ctx context.Context, st models.ScreeningType) (models.ScreeningType, error) {
	if st.Name == "" {
		return models.ScreeningType{}, apperr.Validation("name", "required")
	}
	if st.Cost <= 0 {
		return models.ScreeningType{}, apperr.Validation("cost", "must be > 0")
	}
	return s.store.ScreeningTypes().Create(ctx, st)
}

func (s *DirectoryService) ListScreeningTypes(ctx context.Context) ([]models.ScreeningType, error) {
	return s.store.ScreeningTypes().List(ctx)
}

func (s *DirectoryService) CreatePatient(ctx context.Context, p models.Patient) (models.Patient, error) {
	if p.FullName == "" {
		return models.Patient{}, apperr.Validation("full_name", "required")
	}
	if p.DateOfBirth.IsZero() {
		return models.Patient{}, apperr.Validation("date_of_birth", "required")
	}
	switch p.Gender {
	case models.GenderMale, models.GenderFemale:
	default:
		return models.Patient{}, apperr.Validation("gender", "must be male or female")
	}
	return s.store.Patients().Create(ctx, p)
}

func (s *DirectoryService) GetPatient(ctx context.Context, id string) (models.Patient, error) {
	return s.store.Patients().GetByID(ctx, id)
}
