package repositories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tphan267/huddle/pkg/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrNoMatch is returned when no stored credential matches a secret
var ErrNoMatch = errors.New("no credential matches")

type CredentialRepository struct {
	db   *gorm.DB
	cost int
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	db.AutoMigrate(&models.Credential{})
	return &CredentialRepository{db: db, cost: bcrypt.DefaultCost}
}

// WithCost sets the bcrypt cost for newly stored secrets
func (r *CredentialRepository) WithCost(cost int) *CredentialRepository {
	r.cost = cost
	return r
}

// Upsert stores secret for name, replacing any previous secret
func (r *CredentialRepository) Upsert(name, secret string) (*models.Credential, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("credential name cannot be empty")
	}
	if secret == "" {
		return nil, fmt.Errorf("secret cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), r.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash secret: %w", err)
	}

	var cred models.Credential
	err = r.db.Where("name = ?", name).First(&cred).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		cred = models.Credential{Name: name, SecretHash: string(hash)}
		if err := r.db.Create(&cred).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		cred.SecretHash = string(hash)
		if err := r.db.Save(&cred).Error; err != nil {
			return nil, err
		}
	}

	return &cred, nil
}

// Authenticate returns the credential whose secret matches. Secrets are only
// stored hashed, so every row is compared.
func (r *CredentialRepository) Authenticate(secret string) (*models.Credential, error) {
	if secret == "" {
		return nil, ErrNoMatch
	}

	creds, err := r.List()
	if err != nil {
		return nil, err
	}
	for _, cred := range creds {
		if bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)) == nil {
			return cred, nil
		}
	}
	return nil, ErrNoMatch
}

// List returns all credentials ordered by name
func (r *CredentialRepository) List() ([]*models.Credential, error) {
	var creds []*models.Credential
	if err := r.db.Order("name").Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

// Delete removes the credential for name
func (r *CredentialRepository) Delete(name string) error {
	return r.db.Where("name = ?", name).Delete(&models.Credential{}).Error
}

func (r *CredentialRepository) Count() (int, error) {
	var count int64
	if err := r.db.Model(&models.Credential{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// Clear removes all credentials
func (r *CredentialRepository) Clear() error {
	return r.db.Delete(&models.Credential{}, "1=1").Error
}
