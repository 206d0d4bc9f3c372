package repository

import (
	"time"

	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/domain"
)

// Repository defines the interface for cached feed items, keyed by feed endpoint
type Repository interface {
	Get(key string) ([]domain.Item, bool)
	Set(key string, items []domain.Item)
	GetAll() []domain.Item
	Status() (map[string]int, time.Time)
}
