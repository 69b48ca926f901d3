// Package service implements the user record service: cache-aside reads
// and write-then-invalidate mutations over the store and cache adapters.
//
// Cache keys form a documented contract shared by reads and invalidation:
//
//	user:id:<id>
//	user:email:<email>
//	users:page:<p>:limit:<l>:search:<s|none>
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dosquisd/testing-kubernetes/internal/cache"
	"github.com/dosquisd/testing-kubernetes/internal/model"
	"github.com/dosquisd/testing-kubernetes/internal/repository"
)

const (
	// userTTL bounds single-user cache entries; listTTL bounds cached
	// pages. Entries are otherwise removed only by write invalidation.
	userTTL = 5 * time.Minute
	listTTL = 3 * time.Minute

	// listPattern matches every cached page/search result.
	listPattern = "users:*"
)

// UserStore is the persistent store contract the service depends on.
type UserStore interface {
	FindByID(ctx context.Context, id int) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, offset, limit int, search string) ([]model.User, error)
	Insert(ctx context.Context, user model.UserCreate) (*model.User, error)
	Update(ctx context.Context, id int, patch model.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, id int) (*model.User, error)
}

// UserService orchestrates the store and the cache. It holds no state of
// its own; every call is a single-shot request/response.
type UserService struct {
	store UserStore
	cache cache.Cache
}

// NewUserService creates a UserService over the given adapters.
func NewUserService(store UserStore, c cache.Cache) *UserService {
	return &UserService{store: store, cache: c}
}

func keyUserID(id int) string {
	return fmt.Sprintf("user:id:%d", id)
}

func keyUserEmail(email string) string {
	return fmt.Sprintf("user:email:%s", email)
}

func keyUsersPage(page, limit int, search string) string {
	if search == "" {
		search = "none"
	}
	return fmt.Sprintf("users:page:%d:limit:%d:search:%s", page, limit, search)
}

// GetByID returns the user with the given id, reading through the cache.
func (s *UserService) GetByID(ctx context.Context, id int) (*model.User, error) {
	key := keyUserID(id)

	var cached model.User
	if s.cacheRead(ctx, key, &cached) {
		return &cached, nil
	}

	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundID(id)
		}
		return nil, Internal(err)
	}

	s.cacheWrite(ctx, key, user, userTTL)
	return user, nil
}

// GetByEmail returns the user with the given email, reading through the
// cache.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	key := keyUserEmail(email)

	var cached model.User
	if s.cacheRead(ctx, key, &cached) {
		return &cached, nil
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundEmail(email)
		}
		return nil, Internal(err)
	}

	s.cacheWrite(ctx, key, user, userTTL)
	return user, nil
}

// List returns one page of users, reading through the cache. Pages are
// 1-indexed; search filters by substring on name or email.
func (s *UserService) List(ctx context.Context, page, limit int, search string) ([]model.User, error) {
	key := keyUsersPage(page, limit, search)

	var cached []model.User
	if s.cacheRead(ctx, key, &cached) {
		return cached, nil
	}

	offset := (page - 1) * limit
	users, err := s.store.List(ctx, offset, limit, search)
	if err != nil {
		return nil, Internal(err)
	}

	s.cacheWrite(ctx, key, users, listTTL)
	return users, nil
}

// Create inserts a new user and invalidates every cached page, since the
// new row can change the membership of any of them.
func (s *UserService) Create(ctx context.Context, user model.UserCreate) (*model.User, error) {
	created, err := s.store.Insert(ctx, user)
	if err != nil {
		return nil, Internal(err)
	}

	s.invalidatePattern(ctx, listPattern)
	return created, nil
}

// Update applies a partial update and invalidates the user's entries and
// every cached page. The email key is derived from the record as loaded
// before the patch, so a cached entry under the old email is removed.
func (s *UserService) Update(ctx context.Context, id int, patch model.UserUpdate) (*model.User, error) {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundID(id)
		}
		return nil, Internal(err)
	}

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundID(id)
		}
		return nil, Internal(err)
	}

	s.invalidateKey(ctx, keyUserID(id))
	s.invalidateKey(ctx, keyUserEmail(existing.Email))
	s.invalidatePattern(ctx, listPattern)
	return updated, nil
}

// Delete removes a user, returning the row's last known state, and
// invalidates the user's entries and every cached page.
func (s *UserService) Delete(ctx context.Context, id int) (*model.User, error) {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundID(id)
		}
		return nil, Internal(err)
	}

	s.invalidateKey(ctx, keyUserID(id))
	s.invalidateKey(ctx, keyUserEmail(deleted.Email))
	s.invalidatePattern(ctx, listPattern)
	return deleted, nil
}

// cacheRead attempts a cache hit into dest. A missing key, a cache error
// or an undecodable entry all count as a miss; only the miss path queries
// the store, so a broken cache can never fail a read.
func (s *UserService) cacheRead(ctx context.Context, key string, dest any) bool {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("cache get %s failed: %v", key, err)
		}
		return false
	}

	if err := json.Unmarshal([]byte(value), dest); err != nil {
		log.Printf("cache entry %s is not decodable, treating as miss: %v", key, err)
		return false
	}

	return true
}

// cacheWrite serializes value into the cache, best effort.
func (s *UserService) cacheWrite(ctx context.Context, key string, value any, ttl time.Duration) {
	encoded, err := json.Marshal(value)
	if err != nil {
		log.Printf("failed to encode cache entry %s: %v", key, err)
		return
	}
	if err := s.cache.Set(ctx, key, string(encoded), ttl); err != nil {
		log.Printf("cache set %s failed: %v", key, err)
	}
}

func (s *UserService) invalidateKey(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		log.Printf("cache delete %s failed: %v", key, err)
	}
}

func (s *UserService) invalidatePattern(ctx context.Context, pattern string) {
	if _, err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		log.Printf("cache delete pattern %s failed: %v", pattern, err)
	}
}
