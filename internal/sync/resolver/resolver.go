// Package resolver loads the integration context a sync run operates under.
package resolver

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/channelsync-backend/internal/repo"
	"github.com/angelmondragon/channelsync-backend/pkg/db/models"
	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
)

// Context is the resolved, read-only state for one run: who the tenant is,
// which platform account to call, and with what credential.
type Context struct {
	Integration           models.Integration
	TenantID              uuid.UUID
	Platform              enums.Platform
	AccountRef            string
	AccessToken           string
	AttributionWindowDays int
	StubMode              bool
}

// Resolver performs the single authoritative integration read per run.
type Resolver struct {
	repo.Base
}

// New constructs a resolver backed by the provided GORM connection.
func New(db *gorm.DB) *Resolver {
	return &Resolver{Base: repo.NewBase(db)}
}

// Resolve loads the integration and its credential. stubMode marks the
// platform as running against synthetic data, which waives the credential
// requirement.
func (r *Resolver) Resolve(ctx context.Context, integrationID uuid.UUID, stubMode bool) (*Context, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "resolver not configured")
	}

	var integration models.Integration
	err := r.DB(ctx).
		Preload("Credential").
		Where("id = ? AND status = ?", integrationID, enums.IntegrationConnected).
		First(&integration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeIntegrationMissing, "no connected integration for id "+integrationID.String())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load integration")
	}

	resolved := &Context{
		Integration:           integration,
		TenantID:              integration.TenantID,
		Platform:              integration.Platform,
		AccountRef:            integration.ExternalAccountRef,
		AttributionWindowDays: integration.AttributionWindowDays,
		StubMode:              stubMode,
	}

	if integration.Credential != nil {
		resolved.AccessToken = integration.Credential.AccessToken
	}
	if resolved.AccessToken == "" && !stubMode {
		return nil, pkgerrors.New(pkgerrors.CodeCredentialMissing, "integration "+integrationID.String()+" has no credential")
	}

	return resolved, nil
}
