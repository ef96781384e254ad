package businessflow

import (
	"context"

	"github.com/amirphl/Orochi-Audience-Sync/app/services"
	"github.com/amirphl/Orochi-Audience-Sync/syncerror"
)

// Resolution is a resolved audience id and the path that produced it
type Resolution struct {
	AudienceID string
	Path       services.ResolutionPath
}

// AudienceResolver turns (advertiser, audience name) into a platform audience id
type AudienceResolver interface {
	Resolve(ctx context.Context, creds services.Credentials, advertiserID, name string) (Resolution, error)
}

// AudienceResolverImpl lists first and only creates when the name is absent.
// Ids are never cached; every call asks the platform again.
type AudienceResolverImpl struct {
	catalog     services.AudienceCatalog
	provisioner services.AudienceProvisioner
}

func NewAudienceResolver(catalog services.AudienceCatalog, provisioner services.AudienceProvisioner) *AudienceResolverImpl {
	return &AudienceResolverImpl{
		catalog:     catalog,
		provisioner: provisioner,
	}
}

// Resolve costs one list call in the common case and at most list, create, list
// when a concurrent creator wins the race.
func (r *AudienceResolverImpl) Resolve(ctx context.Context, creds services.Credentials, advertiserID, name string) (Resolution, error) {
	if name == "" {
		return Resolution{}, syncerror.InvalidField(syncerror.CodeAudienceNameRequired, "audienceName", name, "must not be empty")
	}

	audience, err := r.catalog.FindByName(ctx, creds, advertiserID, name)
	if err != nil {
		return Resolution{}, err
	}
	if audience != nil {
		audienceResolutionsTotal.WithLabelValues(string(services.PathFound)).Inc()
		return Resolution{AudienceID: audience.ID, Path: services.PathFound}, nil
	}

	prov, err := r.provisioner.Provision(ctx, creds, advertiserID, name)
	if err != nil {
		return Resolution{}, err
	}
	audienceResolutionsTotal.WithLabelValues(string(prov.Path)).Inc()
	return Resolution{AudienceID: prov.AudienceID, Path: prov.Path}, nil
}
