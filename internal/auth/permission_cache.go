package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"gorm.io/gorm"
)

// UserCache 用户解析缓存
type UserCache struct {
	cache *sync.Map
	ttl   time.Duration
	now   func() time.Time
}

// cacheEntry 缓存条目
type cacheEntry struct {
	user      *model.User
	expiresAt time.Time
}

// NewUserCache 创建用户缓存
func NewUserCache(ttl time.Duration) *UserCache {
	return &UserCache{
		cache: &sync.Map{},
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get 获取缓存
func (c *UserCache) Get(subject string) (*model.User, bool) {
	val, found := c.cache.Load(subject)
	if !found {
		return nil, false
	}

	entry := val.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.cache.Delete(subject)
		return nil, false
	}

	// 返回副本，避免调用方修改缓存
	user := *entry.user
	return &user, true
}

// Set 设置缓存
func (c *UserCache) Set(subject string, user *model.User) {
	copied := *user
	c.cache.Store(subject, &cacheEntry{
		user:      &copied,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Invalidate 删除指定用户的缓存
func (c *UserCache) Invalidate(userID uint) {
	c.cache.Range(func(key, value interface{}) bool {
		if value.(*cacheEntry).user.ID == userID {
			c.cache.Delete(key)
		}
		return true
	})
}

// Clear 清空缓存
func (c *UserCache) Clear() {
	c.cache.Range(func(key, value interface{}) bool {
		c.cache.Delete(key)
		return true
	})
}

// CachedUserResolver resolves token subjects through the user repository,
// caching hits for the cache TTL.
type CachedUserResolver struct {
	users repository.UserRepository
	cache *UserCache
}

// NewCachedUserResolver 创建带缓存的用户解析器
func NewCachedUserResolver(users repository.UserRepository, cache *UserCache) *CachedUserResolver {
	return &CachedUserResolver{users: users, cache: cache}
}

// Resolve 解析用户
func (r *CachedUserResolver) Resolve(ctx context.Context, subject string) (*model.User, error) {
	if user, ok := r.cache.Get(subject); ok {
		return user, nil
	}
	user, err := r.users.FindByKeycloakID(ctx, subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	r.cache.Set(subject, user)
	return user, nil
}

// Invalidate 用户资料变更后清除缓存
func (r *CachedUserResolver) Invalidate(userID uint) {
	r.cache.Invalidate(userID)
}
