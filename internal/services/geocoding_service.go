package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/config"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/redis"
)

const geocodeCacheTTL = 24 * time.Hour

// Coordinates представляют координаты точки.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeocodingService переводит адреса станций в координаты с кешированием в Redis.
// В офлайн-режиме координаты детерминированно выводятся из адреса (без внешних API).
type GeocodingService struct {
	redis  *redis.Client
	log    *logger.Logger
	client *http.Client
	cfg    *config.GeocodingConfig
}

// NewGeocodingService создает сервис геокодирования.
func NewGeocodingService(redis *redis.Client, log *logger.Logger, cfg *config.GeocodingConfig) *GeocodingService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GeocodingService{
		redis:  redis,
		log:    log,
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
	}
}

// Geocode возвращает координаты по адресу, используя кеш Redis.
func (s *GeocodingService) Geocode(ctx context.Context, address string) (float64, float64, error) {
	if address == "" {
		return 0, 0, fmt.Errorf("address is empty")
	}

	key := redis.GenerateKey(redis.KeyPrefixGeocode, hashKey(address))

	// Пробуем из кеша
	var cached Coordinates
	if err := s.redis.Get(ctx, key, &cached); err == nil {
		return cached.Lat, cached.Lon, nil
	}

	var (
		lat float64
		lon float64
		err error
	)

	if strings.EqualFold(s.cfg.Provider, "nominatim") && s.cfg.NominatimURL != "" {
		lat, lon, err = s.nominatimGeocode(ctx, address)
		if err != nil {
			s.log.WithError(err).WithField("address", address).Warn("Nominatim geocode failed, fallback to offline")
			lat, lon = hashToCoordinates(address)
		}
	} else {
		lat, lon = hashToCoordinates(address)
	}

	coords := Coordinates{Lat: lat, Lon: lon}

	// Пишем в кеш (best effort)
	if err := s.redis.Set(ctx, key, coords, geocodeCacheTTL); err != nil {
		s.log.WithError(err).WithField("address", address).Warn("Failed to cache geocode result")
	}

	return lat, lon, nil
}

// nominatimGeocode вызывает Nominatim search API и возвращает координаты (lat, lon).
func (s *GeocodingService) nominatimGeocode(ctx context.Context, address string) (float64, float64, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")

	reqURL := s.cfg.NominatimURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build request: %w", err)
	}
	// Nominatim требует идентификацию клиента
	req.Header.Set("User-Agent", "beepbeep-sub002/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to call nominatim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, 0, fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, string(body))
	}

	var data []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, 0, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("nominatim returned no results")
	}

	// lat/lon в ответе приходят строками
	lat, err := strconv.ParseFloat(data[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(data[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse longitude: %w", err)
	}

	return lat, lon, nil
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// hashToCoordinates генерирует координаты из адреса.
func hashToCoordinates(address string) (float64, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(address))
	val := h.Sum64()

	// lat: -90..90, lon: -180..180
	lat := -90 + float64(val%18000)/100.0          // шаг 0.01 градуса
	lon := -180 + float64((val/18000)%36000)/100.0 // шаг 0.01 градуса

	return lat, lon
}

// hashKey делает короткий ключ для адреса.
func hashKey(address string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(address))
	return fmt.Sprintf("%x", h.Sum64())
}
