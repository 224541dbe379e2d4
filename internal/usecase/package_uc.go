// File: internal/usecase/package_uc.go
package usecase

import (
	"context"

	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/repository"
)

// Compile-time check
var _ PackageUseCase = (*packageUC)(nil)

// PackageUseCase serves catalog reads. Packages are immutable once an
// entitlement references them, so there is no update path here.
type PackageUseCase interface {
	Get(ctx context.Context, id string) (*model.Package, error)
	List(ctx context.Context) ([]*model.Package, error)
	Videos(ctx context.Context, packageID string) ([]*model.Video, error)
}

type packageUC struct {
	packages repository.PackageRepository
}

func NewPackageUseCase(packages repository.PackageRepository) *packageUC {
	return &packageUC{packages: packages}
}

func (u *packageUC) Get(ctx context.Context, id string) (*model.Package, error) {
	return u.packages.FindByID(ctx, repository.NoTX, id)
}

func (u *packageUC) List(ctx context.Context) ([]*model.Package, error) {
	return u.packages.List(ctx, repository.NoTX)
}

func (u *packageUC) Videos(ctx context.Context, packageID string) ([]*model.Video, error) {
	return u.packages.ListVideos(ctx, repository.NoTX, packageID)
}
