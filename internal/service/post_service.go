package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	apperrors "bboard/internal/errors"
	"bboard/internal/model"
	"bboard/internal/password"
	"bboard/internal/repository"
	"bboard/internal/storage"
)

const (
	// PageSize is the fixed number of posts per list page.
	PageSize = 10

	postCacheTTL = 5 * time.Minute
)

// CreatePostInput carries a validated create submission.
type CreatePostInput struct {
	Title    string
	Content  string
	Username string
	Password string
	// Attachment is nil when no file accompanied the form.
	Attachment *AttachmentUpload
}

// AttachmentUpload is an uploaded file not yet written to storage.
type AttachmentUpload struct {
	OriginalName string
	Content      io.Reader
}

// UpdatePostInput carries a validated update submission. Password must match
// the stored hash and becomes the post's new password on success.
type UpdatePostInput struct {
	Title    string
	Content  string
	Username string
	Password string
}

// ListQuery selects a page of the post listing, optionally filtered.
type ListQuery struct {
	Page          int
	SearchType    string
	SearchKeyword string
}

// PostListItem pairs a post with its display index: with N matching posts the
// newest row is labeled N, descending to 1 for the oldest, independent of the
// page viewed.
type PostListItem struct {
	model.Post
	DisplayIndex int64 `json:"display_index"`
}

// PostPage is one page of the listing, newest first. SearchType and
// SearchKeyword echo the query so a client can re-render the search form.
type PostPage struct {
	Items         []PostListItem `json:"items"`
	Total         int64          `json:"total"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
	TotalPages    int            `json:"total_pages"`
	SearchType    string         `json:"search_type,omitempty"`
	SearchKeyword string         `json:"search_keyword,omitempty"`
}

// Attachment is an opened attachment ready to stream to a client. Name is the
// filename as originally uploaded, not the storage token.
type Attachment struct {
	Name    string
	Size    int64
	Content io.ReadCloser
}

// Cache is the subset of the redis client the service uses. A Get miss is
// (nil, nil), not an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// cachedPost is the cache encoding of a post. model.Post hides PasswordHash
// and AttachmentID from client JSON, so the cache needs its own encoding that
// keeps every column intact across the round trip.
type cachedPost struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"password_hash"`
	AttachmentID   string    `json:"attachment_id"`
	AttachmentName string    `json:"attachment_name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toCachedPost(p *model.Post) cachedPost {
	return cachedPost{
		ID:             p.ID,
		Title:          p.Title,
		Content:        p.Content,
		Username:       p.Username,
		PasswordHash:   p.PasswordHash,
		AttachmentID:   p.AttachmentID,
		AttachmentName: p.AttachmentName,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (c cachedPost) post() *model.Post {
	return &model.Post{
		ID:             c.ID,
		Title:          c.Title,
		Content:        c.Content,
		Username:       c.Username,
		PasswordHash:   c.PasswordHash,
		AttachmentID:   c.AttachmentID,
		AttachmentName: c.AttachmentName,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// PostService exposes the bulletin-board operations.
type PostService interface {
	Create(ctx context.Context, input CreatePostInput) (*model.Post, error)
	Get(ctx context.Context, id uint) (*model.Post, error)
	Update(ctx context.Context, id uint, input UpdatePostInput) (*model.Post, error)
	Delete(ctx context.Context, id uint, plainPassword string) error
	List(ctx context.Context, query ListQuery) (*PostPage, error)
	OpenAttachment(ctx context.Context, id uint) (*Attachment, error)
}

type postService struct {
	repo  repository.PostRepository
	files *storage.Store
	cache Cache
	log   zerolog.Logger
}

// NewPostService builds a PostService over a repository, an attachment store
// and a cache.
func NewPostService(repo repository.PostRepository, files *storage.Store, cache Cache, log zerolog.Logger) PostService {
	return &postService{
		repo:  repo,
		files: files,
		cache: cache,
		log:   log,
	}
}

func (s *postService) cacheKey(id uint) string {
	return fmt.Sprintf("post:%d", id)
}

// Create hashes the submitted password, persists the post, then writes the
// attachment if one was supplied. The row write and the file write are not
// transactional: a failed upload leaves the post in place without its file.
func (s *postService) Create(ctx context.Context, input CreatePostInput) (*model.Post, error) {
	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	post := &model.Post{
		Title:        input.Title,
		Content:      input.Content,
		Username:     input.Username,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	if input.Attachment != nil {
		token, err := s.files.Save(post.ID, input.Attachment.Content)
		if err != nil {
			s.log.Error().Err(err).Uint("post_id", post.ID).
				Msg("attachment write failed, post kept without file")
			return post, nil
		}
		post.AttachmentID = token
		post.AttachmentName = input.Attachment.OriginalName
		if err := s.repo.Update(ctx, post); err != nil {
			// the row never learned about the file, so don't orphan it
			if rmErr := s.files.Remove(post.ID, token); rmErr != nil {
				s.log.Warn().Err(rmErr).Uint("post_id", post.ID).
					Msg("orphaned attachment cleanup failed")
			}
			return nil, fmt.Errorf("record attachment: %w", err)
		}
	}

	return post, nil
}

// Get retrieves a post by ID with read-through caching.
func (s *postService) Get(ctx context.Context, id uint) (*model.Post, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached cachedPost
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached.post(), nil
		}
	}

	post, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(toCachedPost(post)); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, postCacheTTL)
	}
	return post, nil
}

// Update verifies the password against the stored hash, then applies the new
// fields. A wrong password changes nothing. The submitted password is
// re-hashed and becomes the post's password, whether or not it changed.
func (s *postService) Update(ctx context.Context, id uint, input UpdatePostInput) (*model.Post, error) {
	post, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if !password.Verify(input.Password, post.PasswordHash) {
		return nil, apperrors.ErrWrongPassword
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	post.Title = input.Title
	post.Content = input.Content
	post.Username = input.Username
	post.PasswordHash = hash
	if err := s.repo.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return post, nil
}

// Delete verifies the password, removes the row, then best-effort removes the
// attachment file.
func (s *postService) Delete(ctx context.Context, id uint, plainPassword string) error {
	post, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}

	if !password.Verify(plainPassword, post.PasswordHash) {
		return apperrors.ErrWrongPassword
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrPostNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}

	if post.HasAttachment() {
		if err := s.files.Remove(post.ID, post.AttachmentID); err != nil {
			s.log.Warn().Err(err).Uint("post_id", post.ID).
				Msg("attachment cleanup failed after delete")
		}
	}

	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return nil
}

// List returns one page of posts with display indexes. A page below 1 is
// normalized to 1; a page past the end comes back empty rather than failing.
func (s *postService) List(ctx context.Context, query ListQuery) (*PostPage, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}

	filter := repository.SearchFilter{Type: query.SearchType, Keyword: query.SearchKeyword}
	posts, total, err := s.repo.List(ctx, filter, page, PageSize)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	// The newest matching post is labeled with the total count, descending to
	// 1 for the oldest. Computed from total, page and page size only.
	start := total - int64(PageSize)*int64(page-1)
	items := make([]PostListItem, len(posts))
	for i, p := range posts {
		items[i] = PostListItem{Post: p, DisplayIndex: start - int64(i)}
	}

	return &PostPage{
		Items:         items,
		Total:         total,
		Page:          page,
		PageSize:      PageSize,
		TotalPages:    int((total + PageSize - 1) / PageSize),
		SearchType:    query.SearchType,
		SearchKeyword: query.SearchKeyword,
	}, nil
}

// OpenAttachment opens a post's attachment for download. A post without an
// attachment, or one whose file vanished from disk, reads as not found; a
// file that exists but cannot be opened surfaces as a storage error.
func (s *postService) OpenAttachment(ctx context.Context, id uint) (*Attachment, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.HasAttachment() {
		return nil, apperrors.ErrAttachmentNotFound
	}

	rc, size, err := s.files.Open(post.ID, post.AttachmentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrAttachmentUnreadable, err)
	}

	return &Attachment{Name: post.AttachmentName, Size: size, Content: rc}, nil
}

// fetch loads a post straight from the repository, mapping the ORM's
// not-found. Mutations go through here so they never act on a stale cache.
func (s *postService) fetch(ctx context.Context, id uint) (*model.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPostNotFound
		}
		return nil, fmt.Errorf("find post: %w", err)
	}
	return post, nil
}
