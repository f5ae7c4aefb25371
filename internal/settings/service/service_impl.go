package service

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/config"
	"github.com/smallbiznis/lingohub/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	cacheSize = 128
	cacheTTL  = time.Minute
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
	Cfg   config.Config
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	defaults map[string]string
	cache    *Cache
}

func NewService(p Params) *Service {
	defaults := make(map[string]string, len(domain.Defaults))
	for key, value := range domain.Defaults {
		defaults[key] = value
	}
	defaults[domain.KeyCheckoutSuccessURL] = p.Cfg.Gateway.SuccessURL
	defaults[domain.KeyCheckoutCancelURL] = p.Cfg.Gateway.CancelURL

	svc := &Service{
		db:       p.DB,
		log:      p.Log.Named("settings.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		defaults: defaults,
	}
	svc.cache = NewCache(cacheSize, cacheTTL, svc.load)
	return svc
}

func (s *Service) Cache() *Cache {
	return s.cache
}

func (s *Service) Get(ctx context.Context, key string) (string, error) {
	key = normalizeKey(key)
	if _, ok := s.defaults[key]; !ok {
		return "", domain.ErrUnknownSetting
	}
	return s.cache.Get(ctx, key)
}

// List returns every known setting, stored values overriding defaults.
func (s *Service) List(ctx context.Context) ([]domain.PlatformSetting, error) {
	stored, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]domain.PlatformSetting, len(s.defaults))
	for key, value := range s.defaults {
		byKey[key] = domain.PlatformSetting{Key: key, Value: value}
	}
	for _, item := range stored {
		if _, ok := byKey[item.Key]; ok {
			byKey[item.Key] = item
		}
	}
	out := make([]domain.PlatformSetting, 0, len(byKey))
	for _, item := range byKey {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Set writes through to the store and invalidates the cached key.
func (s *Service) Set(ctx context.Context, key, value string) (*domain.PlatformSetting, error) {
	key = normalizeKey(key)
	if _, ok := s.defaults[key]; !ok {
		return nil, domain.ErrUnknownSetting
	}
	value, err := validateValue(key, value)
	if err != nil {
		return nil, err
	}

	setting := &domain.PlatformSetting{Key: key, Value: value, UpdatedAt: s.clock.Now()}
	if err := s.repo.Upsert(ctx, s.db, setting); err != nil {
		return nil, err
	}
	s.cache.Invalidate(key)
	s.log.Info("platform setting updated", zap.String("key", key))
	return setting, nil
}

func (s *Service) load(ctx context.Context, key string) (string, error) {
	item, err := s.repo.Find(ctx, s.db, key)
	if err != nil {
		return "", err
	}
	if item == nil {
		return s.defaults[key], nil
	}
	return item.Value, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func validateValue(key, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch key {
	case domain.KeyCurrency:
		value = strings.ToUpper(value)
		if !currencyPattern.MatchString(value) {
			return "", domain.ErrInvalidSetting
		}
	case domain.KeyCheckoutSuccessURL, domain.KeyCheckoutCancelURL:
		if value == "" {
			return value, nil
		}
		u, err := url.ParseRequestURI(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", domain.ErrInvalidSetting
		}
	}
	return value, nil
}
