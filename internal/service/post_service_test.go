package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "bboard/internal/errors"
	"bboard/internal/model"
	"bboard/internal/password"
	"bboard/internal/repository"
	"bboard/internal/storage"
)

// MockPostRepository is a mock implementation of PostRepository.
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(ctx context.Context, post *model.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) FindByID(ctx context.Context, id uint) (*model.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostRepository) Update(ctx context.Context, post *model.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostRepository) List(ctx context.Context, filter repository.SearchFilter, page, pageSize int) ([]model.Post, int64, error) {
	args := m.Called(ctx, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]model.Post), args.Get(1).(int64), args.Error(2)
}

// fakeCache is a map-backed Cache so tests cover both the miss and the hit
// path without a redis instance.
type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	return f.data[key], nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func newTestService(t *testing.T, repo repository.PostRepository) (PostService, *storage.Store) {
	t.Helper()
	files := storage.NewStore(t.TempDir())
	return NewPostService(repo, files, newFakeCache(), zerolog.Nop()), files
}

func TestCreateHashesPassword(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Post")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*model.Post).ID = 1
		}).Return(nil)

	svc, _ := newTestService(t, mockRepo)
	post, err := svc.Create(context.Background(), CreatePostInput{
		Title: "t", Content: "c", Username: "u", Password: "hunter2",
	})

	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", post.PasswordHash)
	assert.True(t, password.Verify("hunter2", post.PasswordHash))
	assert.False(t, post.HasAttachment())
	mockRepo.AssertExpectations(t)
}

func TestCreateStoresAttachment(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Post")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*model.Post).ID = 9
		}).Return(nil)
	mockRepo.On("Update", mock.Anything, mock.AnythingOfType("*model.Post")).Return(nil)

	svc, files := newTestService(t, mockRepo)
	content := []byte("%PDF-1.4 pretend")
	post, err := svc.Create(context.Background(), CreatePostInput{
		Title: "t", Content: "c", Username: "u", Password: "pw",
		Attachment: &AttachmentUpload{
			OriginalName: "report (final).pdf",
			Content:      bytes.NewReader(content),
		},
	})

	require.NoError(t, err)
	assert.True(t, post.HasAttachment())
	assert.Equal(t, "report (final).pdf", post.AttachmentName)
	assert.NotContains(t, post.AttachmentID, "report")

	rc, size, err := files.Open(post.ID, post.AttachmentID)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, int64(len(content)), size)
	mockRepo.AssertExpectations(t)
}

func TestCreateAttachmentFailureKeepsPost(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Post")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*model.Post).ID = 3
		}).Return(nil)

	// a media root that is a regular file makes every write fail
	badRoot := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(badRoot, []byte("x"), 0o644))
	files := storage.NewStore(badRoot)
	svc := NewPostService(mockRepo, files, newFakeCache(), zerolog.Nop())

	post, err := svc.Create(context.Background(), CreatePostInput{
		Title: "t", Content: "c", Username: "u", Password: "pw",
		Attachment: &AttachmentUpload{
			OriginalName: "doomed.txt",
			Content:      strings.NewReader("payload"),
		},
	})

	// the post survives without its attachment
	require.NoError(t, err)
	assert.False(t, post.HasAttachment())
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestGetCacheHitKeepsEveryColumn(t *testing.T) {
	stored := &model.Post{
		ID: 8, Title: "t", Content: "c", Username: "u", PasswordHash: "hash",
		AttachmentID:   "deadbeefdeadbeefdeadbeefdeadbeef",
		AttachmentName: "report (final).pdf",
		CreatedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
	}

	mockRepo := new(MockPostRepository)
	// one repository read only; the second Get must come from the cache
	mockRepo.On("FindByID", mock.Anything, uint(8)).Return(stored, nil).Once()

	svc, _ := newTestService(t, mockRepo)
	first, err := svc.Get(context.Background(), 8)
	require.NoError(t, err)

	second, err := svc.Get(context.Background(), 8)
	require.NoError(t, err)

	// fields hidden from client JSON survive the cache round trip too
	assert.Equal(t, stored.AttachmentID, second.AttachmentID)
	assert.True(t, second.HasAttachment())
	assert.Equal(t, stored.PasswordHash, second.PasswordHash)
	assert.Equal(t, first, second)
	mockRepo.AssertExpectations(t)
}

func TestGetCachedPostDownloadsAfterView(t *testing.T) {
	mockRepo := new(MockPostRepository)
	svc, files := newTestService(t, mockRepo)

	token, err := files.Save(9, strings.NewReader("file bytes"))
	require.NoError(t, err)

	mockRepo.On("FindByID", mock.Anything, uint(9)).Return(&model.Post{
		ID: 9, PasswordHash: "h", AttachmentID: token, AttachmentName: "a.bin",
	}, nil).Once()

	// viewing the post warms the cache; the download must still find the file
	_, err = svc.Get(context.Background(), 9)
	require.NoError(t, err)

	att, err := svc.OpenAttachment(context.Background(), 9)
	require.NoError(t, err)
	defer att.Content.Close()

	got, err := io.ReadAll(att.Content)
	require.NoError(t, err)
	assert.Equal(t, "file bytes", string(got))
	mockRepo.AssertExpectations(t)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	hash, err := password.Hash("pw")
	require.NoError(t, err)
	stored := &model.Post{ID: 4, Title: "old", Content: "c", Username: "u", PasswordHash: hash}

	mockRepo := new(MockPostRepository)
	mockRepo.On("FindByID", mock.Anything, uint(4)).Return(stored, nil)
	mockRepo.On("Update", mock.Anything, mock.AnythingOfType("*model.Post")).Return(nil)

	cache := newFakeCache()
	svc := NewPostService(mockRepo, storage.NewStore(t.TempDir()), cache, zerolog.Nop())

	_, err = svc.Get(context.Background(), 4)
	require.NoError(t, err)
	require.NotEmpty(t, cache.data)

	_, err = svc.Update(context.Background(), 4, UpdatePostInput{
		Title: "new", Content: "c", Username: "u", Password: "pw",
	})
	require.NoError(t, err)
	assert.Empty(t, cache.data)
}

func TestCreateAttachmentRecordFailureRemovesFile(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Post")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*model.Post).ID = 6
		}).Return(nil)
	mockRepo.On("Update", mock.Anything, mock.AnythingOfType("*model.Post")).
		Return(errors.New("connection lost"))

	root := t.TempDir()
	svc := NewPostService(mockRepo, storage.NewStore(root), newFakeCache(), zerolog.Nop())

	_, err := svc.Create(context.Background(), CreatePostInput{
		Title: "t", Content: "c", Username: "u", Password: "pw",
		Attachment: &AttachmentUpload{
			OriginalName: "a.txt",
			Content:      strings.NewReader("payload"),
		},
	})
	require.Error(t, err)

	// the written file must not be left orphaned when the row update fails
	entries, readErr := os.ReadDir(filepath.Join(root, "posts", "6"))
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestGetNotFound(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("FindByID", mock.Anything, uint(404)).Return(nil, gorm.ErrRecordNotFound)

	svc, _ := newTestService(t, mockRepo)
	_, err := svc.Get(context.Background(), 404)
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)
}

func TestUpdateWrongPasswordMutatesNothing(t *testing.T) {
	hash, err := password.Hash("correct")
	require.NoError(t, err)
	stored := &model.Post{ID: 5, Title: "old", Content: "old", Username: "old", PasswordHash: hash}

	mockRepo := new(MockPostRepository)
	mockRepo.On("FindByID", mock.Anything, uint(5)).Return(stored, nil)

	svc, _ := newTestService(t, mockRepo)
	_, err = svc.Update(context.Background(), 5, UpdatePostInput{
		Title: "new", Content: "new", Username: "new", Password: "wrong",
	})

	assert.ErrorIs(t, err, apperrors.ErrWrongPassword)
	assert.Equal(t, "old", stored.Title)
	assert.Equal(t, hash, stored.PasswordHash)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateRehashesPassword(t *testing.T) {
	oldHash, err := password.Hash("correct")
	require.NoError(t, err)
	stored := &model.Post{ID: 5, Title: "old", Content: "old", Username: "old", PasswordHash: oldHash}

	mockRepo := new(MockPostRepository)
	mockRepo.On("FindByID", mock.Anything, uint(5)).Return(stored, nil)
	mockRepo.On("Update", mock.Anything, mock.AnythingOfType("*model.Post")).Return(nil)

	svc, _ := newTestService(t, mockRepo)
	updated, err := svc.Update(context.Background(), 5, UpdatePostInput{
		Title: "new title", Content: "new content", Username: "newname", Password: "correct",
	})

	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Title)
	assert.NotEqual(t, oldHash, updated.PasswordHash)
	assert.True(t, password.Verify("correct", updated.PasswordHash))
	mockRepo.AssertExpectations(t)
}

func TestDeleteNotFound(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("FindByID", mock.Anything, uint(77)).Return(nil, gorm.ErrRecordNotFound)

	svc, _ := newTestService(t, mockRepo)
	err := svc.Delete(context.Background(), 77, "whatever")

	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteWrongPassword(t *testing.T) {
	hash, err := password.Hash("correct")
	require.NoError(t, err)

	mockRepo := new(MockPostRepository)
	mockRepo.On("FindByID", mock.Anything, uint(5)).
		Return(&model.Post{ID: 5, PasswordHash: hash}, nil)

	svc, _ := newTestService(t, mockRepo)
	err = svc.Delete(context.Background(), 5, "wrong")

	assert.ErrorIs(t, err, apperrors.ErrWrongPassword)
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteRemovesAttachmentFile(t *testing.T) {
	hash, err := password.Hash("pw")
	require.NoError(t, err)

	mockRepo := new(MockPostRepository)
	svc, files := newTestService(t, mockRepo)

	token, err := files.Save(5, strings.NewReader("bytes"))
	require.NoError(t, err)

	mockRepo.On("FindByID", mock.Anything, uint(5)).Return(&model.Post{
		ID: 5, PasswordHash: hash, AttachmentID: token, AttachmentName: "a.txt",
	}, nil)
	mockRepo.On("Delete", mock.Anything, uint(5)).Return(nil)

	require.NoError(t, svc.Delete(context.Background(), 5, "pw"))

	_, _, err = files.Open(5, token)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestListDisplayIndex(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		total     int64
		count     int
		wantFirst int64
		wantLast  int64
		wantPages int
	}{
		{"first page of 23", 1, 23, 10, 23, 14, 3},
		{"middle page", 2, 23, 10, 13, 4, 3},
		{"last short page", 3, 23, 3, 3, 1, 3},
		{"exactly one page", 1, 10, 10, 10, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts := make([]model.Post, tt.count)
			for i := range posts {
				posts[i] = model.Post{ID: uint(1000 - i)}
			}

			mockRepo := new(MockPostRepository)
			mockRepo.On("List", mock.Anything, repository.SearchFilter{}, tt.page, PageSize).
				Return(posts, tt.total, nil)

			svc, _ := newTestService(t, mockRepo)
			page, err := svc.List(context.Background(), ListQuery{Page: tt.page})

			require.NoError(t, err)
			require.Len(t, page.Items, tt.count)
			assert.Equal(t, tt.wantFirst, page.Items[0].DisplayIndex)
			assert.Equal(t, tt.wantLast, page.Items[len(page.Items)-1].DisplayIndex)
			assert.Equal(t, tt.wantPages, page.TotalPages)
		})
	}
}

func TestListNormalizesPage(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("List", mock.Anything, repository.SearchFilter{}, 1, PageSize).
		Return([]model.Post{}, int64(0), nil)

	svc, _ := newTestService(t, mockRepo)
	page, err := svc.List(context.Background(), ListQuery{Page: -3})

	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	mockRepo.AssertExpectations(t)
}

func TestListEchoesSearchQuery(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("List", mock.Anything,
		repository.SearchFilter{Type: "title", Keyword: "hello"}, 1, PageSize).
		Return([]model.Post{}, int64(0), nil)

	svc, _ := newTestService(t, mockRepo)
	page, err := svc.List(context.Background(), ListQuery{
		Page: 1, SearchType: "title", SearchKeyword: "hello",
	})

	require.NoError(t, err)
	assert.Equal(t, "title", page.SearchType)
	assert.Equal(t, "hello", page.SearchKeyword)
}

func TestOpenAttachment(t *testing.T) {
	mockRepo := new(MockPostRepository)
	svc, files := newTestService(t, mockRepo)

	token, err := files.Save(8, strings.NewReader("attachment bytes"))
	require.NoError(t, err)

	mockRepo.On("FindByID", mock.Anything, uint(8)).Return(&model.Post{
		ID: 8, PasswordHash: "h", AttachmentID: token, AttachmentName: "민수의 문서.txt",
	}, nil)

	att, err := svc.OpenAttachment(context.Background(), 8)
	require.NoError(t, err)
	defer att.Content.Close()

	assert.Equal(t, "민수의 문서.txt", att.Name)
	got, err := io.ReadAll(att.Content)
	require.NoError(t, err)
	assert.Equal(t, "attachment bytes", string(got))
}

func TestOpenAttachmentNoneRecorded(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("FindByID", mock.Anything, uint(8)).
		Return(&model.Post{ID: 8, PasswordHash: "h"}, nil)

	svc, _ := newTestService(t, mockRepo)
	_, err := svc.OpenAttachment(context.Background(), 8)
	assert.ErrorIs(t, err, apperrors.ErrAttachmentNotFound)
}

func TestOpenAttachmentFileMissingOnDisk(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("FindByID", mock.Anything, uint(8)).Return(&model.Post{
		ID: 8, PasswordHash: "h",
		AttachmentID: "deadbeefdeadbeefdeadbeefdeadbeef", AttachmentName: "gone.txt",
	}, nil)

	svc, _ := newTestService(t, mockRepo)
	_, err := svc.OpenAttachment(context.Background(), 8)
	assert.ErrorIs(t, err, apperrors.ErrAttachmentNotFound)
}
