package repository

import (
	"context"

	"course-entitlement-platform/internal/domain/model"
)

// PackageRepository is the port for the sellable catalog. Packages are
// immutable once referenced by an entitlement, so there is no update method.
type PackageRepository interface {
	Save(ctx context.Context, tx Tx, pkg *model.Package) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Package, error)
	List(ctx context.Context, tx Tx) ([]*model.Package, error)

	SaveVideo(ctx context.Context, tx Tx, v *model.Video) error
	FindVideo(ctx context.Context, tx Tx, videoID string) (*model.Video, error)
	// ListVideos returns the package's videos ordered by position.
	ListVideos(ctx context.Context, tx Tx, packageID string) ([]*model.Video, error)
	CountVideos(ctx context.Context, tx Tx, packageID string) (int, error)
}
