package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/mailtrust/go-mailtrust-server/util"
	"github.com/redis/go-redis/v9"
)

// KeyDirectoryError is a recognized, mapped failure of the remote key
// directory (email failed validation, recipient not found). The numeric
// code is passed through to clients unchanged.
type KeyDirectoryError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *KeyDirectoryError) Error() string {
	return fmt.Sprintf("key directory error %d: %s", e.Code, e.Message)
}

type keyDirectoryResponse struct {
	Code          int                    `json:"code"`
	Keys          []types.PublicKeyEntry `json:"keys"`
	RecipientType types.RecipientType    `json:"recipientType"`
}

// KeyDirectoryService looks up the public key directory entry for an email
// address. Successful responses are cached briefly in redis; mapped
// directory errors are not cached.
type KeyDirectoryService struct {
	restyClient *resty.Client
	env         *types.Environment
}

func NewKeyDirectoryService(env *types.Environment) *KeyDirectoryService {
	rc := resty.New().
		SetBaseURL(global.Conf.MailTrust.KeyDirectoryURL).
		SetHeader("Accept", "application/json").
		SetTimeout(time.Second * 10)
	return &KeyDirectoryService{restyClient: rc, env: env}
}

// Client exposes the underlying resty client (tests activate httpmock on it).
func (kds *KeyDirectoryService) Client() *resty.Client {
	return kds.restyClient
}

// FetchPublicKeys queries the directory for the keys of an email address.
// Returns:
//   - *KeyDirectoryError for recognized mapped codes (validation, not found)
//   - types.ErrKeyDirectoryUnavailable wrapped errors for transport failures
//
// "no keys" is a success with an empty key list, not an error.
func (kds *KeyDirectoryService) FetchPublicKeys(ctx context.Context, email string) (*types.KeysResponse, error) {
	cacheKey := util.CacheKey("keydir", email)
	if cached := kds.getFromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	var dirResp keyDirectoryResponse
	var dirErr KeyDirectoryError
	resp, rErr := kds.restyClient.R().
		SetContext(ctx).
		SetQueryParam("email", email).
		SetResult(&dirResp).
		SetError(&dirErr).
		Get("/api/v1/keys")
	if rErr != nil {
		level.Warn(global.Logger).Log("msg", "key directory unreachable", "email", email, "err", rErr)
		return nil, fmt.Errorf("%w: %v", types.ErrKeyDirectoryUnavailable, rErr)
	}
	if resp.IsError() {
		if dirErr.Code != 0 {
			return nil, &dirErr
		}
		return nil, fmt.Errorf("%w: status %d", types.ErrKeyDirectoryUnavailable, resp.StatusCode())
	}

	keysResponse := &types.KeysResponse{
		Keys:          dirResp.Keys,
		RecipientType: dirResp.RecipientType,
	}
	kds.saveToCache(ctx, cacheKey, keysResponse)
	return keysResponse, nil
}

func (kds *KeyDirectoryService) getFromCache(ctx context.Context, cacheKey string) *types.KeysResponse {
	val, cErr := kds.env.RedisClient.Get(ctx, cacheKey).Result()
	if cErr != nil {
		if cErr != redis.Nil {
			level.Warn(global.Logger).Log("msg", "key directory cache read failed", "err", cErr)
		}
		return nil
	}
	var keysResponse types.KeysResponse
	if err := json.Unmarshal([]byte(val), &keysResponse); err != nil {
		level.Warn(global.Logger).Log("msg", "key directory cache unmarshal failed", "err", err)
		return nil
	}
	return &keysResponse
}

func (kds *KeyDirectoryService) saveToCache(ctx context.Context, cacheKey string, keysResponse *types.KeysResponse) {
	respBytes, mErr := json.Marshal(keysResponse)
	if mErr != nil {
		return
	}
	ttl := time.Duration(global.Conf.MailTrust.CacheTTLMinutes) * time.Minute
	if cErr := kds.env.RedisClient.Set(ctx, cacheKey, respBytes, ttl).Err(); cErr != nil {
		level.Warn(global.Logger).Log("msg", "key directory cache write failed", "err", cErr)
	}
}
