package repository

import (
	"context"

	"gorm.io/gorm"

	"bboard/internal/model"
)

// Search type values accepted by SearchFilter. Anything else silently matches
// everything, mirroring the permissive behavior of the board's list page.
const (
	SearchAll      = "all"
	SearchTitle    = "title"
	SearchContent  = "content"
	SearchUsername = "username"
)

// SearchFilter narrows a post listing to rows containing a keyword. An empty
// Type or Keyword leaves the listing unfiltered.
type SearchFilter struct {
	Type    string
	Keyword string
}

// PostRepository defines post persistence operations.
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, id uint) (*model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id uint) error
	// List returns one page of posts, newest first, plus the total filtered
	// count. Pages are 1-based; a page past the end is an empty slice.
	List(ctx context.Context, filter SearchFilter, page, pageSize int) ([]model.Post, int64, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository builds a GORM-backed repository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create creates a new post.
func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// FindByID finds a post by ID.
func (r *postRepository) FindByID(ctx context.Context, id uint) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// Update saves all fields of an existing post.
func (r *postRepository) Update(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

// Delete removes a post row. Deleting an unknown id reports
// gorm.ErrRecordNotFound rather than succeeding silently.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Post{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns the requested page and the total filtered count. Ordering is
// created_at descending with id descending as the tiebreaker, so pagination
// is deterministic even for posts created in the same instant.
func (r *postRepository) List(ctx context.Context, filter SearchFilter, page, pageSize int) ([]model.Post, int64, error) {
	if page < 1 {
		page = 1
	}

	q := r.applyFilter(r.db.WithContext(ctx).Model(&model.Post{}), filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []model.Post
	err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// applyFilter composes the keyword predicate. The "all" type groups a LIKE
// across title, content and username with OR; single-field types match one
// column. Case sensitivity follows the database collation.
func (r *postRepository) applyFilter(q *gorm.DB, filter SearchFilter) *gorm.DB {
	if filter.Type == "" || filter.Keyword == "" {
		return q
	}
	kw := "%" + filter.Keyword + "%"
	switch filter.Type {
	case SearchAll:
		return q.Where(
			r.db.Where("title LIKE ?", kw).
				Or("content LIKE ?", kw).
				Or("username LIKE ?", kw),
		)
	case SearchTitle:
		return q.Where("title LIKE ?", kw)
	case SearchContent:
		return q.Where("content LIKE ?", kw)
	case SearchUsername:
		return q.Where("username LIKE ?", kw)
	default:
		// unrecognized search types fall through unfiltered
		return q
	}
}
