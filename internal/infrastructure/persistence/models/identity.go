package models

import (
	"github.com/pos/backend/internal/domain/identity"
	"github.com/pos/backend/internal/domain/shared"
)

// AccountModel is the persistence model for the Account domain entity.
// UsernameKey and EmailKey hold the case-folded values used for lookup.
type AccountModel struct {
	AggregateModel
	TenantColumns
	Username     string        `gorm:"type:varchar(100);not null"`
	UsernameKey  string        `gorm:"type:varchar(100);not null;uniqueIndex"`
	Email        string        `gorm:"type:varchar(200);not null"`
	EmailKey     string        `gorm:"type:varchar(200);not null;index"`
	PasswordHash string        `gorm:"type:varchar(255);not null"`
	Role         identity.Role `gorm:"type:varchar(20);not null"`
	VAT          string        `gorm:"type:varchar(50)"`
	PhotoRef     string        `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the persistence model to a domain Account entity.
func (m *AccountModel) ToDomain() *identity.Account {
	return &identity.Account{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Username:          m.Username,
		Email:             m.Email,
		PasswordHash:      m.PasswordHash,
		Role:              m.Role,
		Tenant:            m.Tenant(),
		VAT:               m.VAT,
		PhotoRef:          m.PhotoRef,
	}
}

// FromDomain populates the persistence model from a domain Account entity.
func (m *AccountModel) FromDomain(a *identity.Account) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.TenantColumns = NewTenantColumns(a.Tenant)
	m.Username = a.Username
	m.UsernameKey = a.UsernameKey()
	m.Email = a.Email
	m.EmailKey = shared.Fold(a.Email)
	m.PasswordHash = a.PasswordHash
	m.Role = a.Role
	m.VAT = a.VAT
	m.PhotoRef = a.PhotoRef
}

// AccountModelFromDomain creates a new AccountModel from a domain Account entity.
func AccountModelFromDomain(a *identity.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}
