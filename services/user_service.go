package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-kit/log/level"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/repository"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/mailtrust/go-mailtrust-server/util"
	"github.com/redis/go-redis/v9"
)

// UserService serves the account whose addresses and keys anchor every
// trust decision: own-address short circuits and card verification roots.
type UserService struct {
	userRepo repository.Repository
	env      *types.Environment
}

func NewUserService(dbSelector repository.DBSelector, env *types.Environment) *UserService {
	userRepo, err := dbSelector.ChooseDB(repository.User)
	if err != nil {
		level.Error(global.Logger).Log("msg", "error while choosing db", "err", err)
		panic(err)
	}
	return &UserService{userRepo: userRepo, env: env}
}

func (s *UserService) getFromCache(ctx context.Context, address string) *types.User {
	val, cErr := s.env.RedisClient.Get(ctx, util.CacheKey("user", address)).Result()
	if cErr != nil {
		if cErr != redis.Nil {
			level.Warn(global.Logger).Log("msg", "user cache read failed", "err", cErr)
		}
		return nil
	}
	var user types.User
	if err := json.Unmarshal([]byte(val), &user); err != nil {
		level.Warn(global.Logger).Log("msg", "user cache unmarshal failed", "err", err)
		return nil
	}
	return &user
}

func (s *UserService) saveToCache(ctx context.Context, address string, user *types.User) {
	userBytes, mErr := json.Marshal(user)
	if mErr != nil {
		level.Warn(global.Logger).Log("msg", "user cache marshal failed", "err", mErr)
		return
	}
	ttl := time.Duration(global.Conf.MailTrust.CacheTTLMinutes) * time.Minute
	if cErr := s.env.RedisClient.Set(ctx, util.CacheKey("user", address), userBytes, ttl).Err(); cErr != nil {
		level.Warn(global.Logger).Log("msg", "user cache write failed", "err", cErr)
	}
}

// Get loads a user by address, cache first.
func (s *UserService) Get(address string) (*types.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if user := s.getFromCache(ctx, address); user != nil {
		return user, nil
	}

	response, err := s.userRepo.GetByID(ctx, address)
	if err != nil {
		return nil, err
	}
	var user types.User
	if mErr := repository.MapToObject(response, &user); mErr != nil {
		return nil, mErr
	}
	s.saveToCache(ctx, address, &user)
	return &user, nil
}

// Save stores a user record and drops the cache entry.
func (s *UserService) Save(address string, user *types.User) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if user.EncryptedEmail == "" && len(user.Addresses) > 0 {
		enc, encErr := util.ScryptEmail(user.Addresses[0].Email)
		if encErr != nil {
			return encErr
		}
		user.EncryptedEmail = enc
	}
	// carry the revision of an existing record so re-provisioning replaces it
	if existing, gErr := s.userRepo.GetByID(ctx, address); gErr == nil {
		var current types.User
		if mErr := repository.MapToObject(existing, &current); mErr == nil {
			user.UnderscoreRev = current.UnderscoreRev
		}
	}
	if err := s.userRepo.Save(ctx, address, user); err != nil {
		level.Error(global.Logger).Log("msg", "failed to save user", "err", err)
		return err
	}
	s.env.RedisClient.Del(ctx, util.CacheKey("user", address))
	return nil
}
