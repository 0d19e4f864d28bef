package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

const (
	keyPrefix = "allocations/"
	keySuffix = ".json.zst"
)

// Snapshot is the archived form of one day's allocation.
type Snapshot struct {
	Day       string       `json:"day"`
	WrittenAt string       `json:"written_at"`
	Rows      []models.Row `json:"rows"`
}

// Archive stores one zstd-compressed JSON snapshot per day in a Store.
// Rewriting a day replaces its snapshot.
type Archive struct {
	store   Store
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New wraps store.
func New(store Store) (*Archive, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Archive{store: store, encoder: encoder, decoder: decoder}, nil
}

// Close releases the codec.
func (a *Archive) Close() error {
	a.decoder.Close()
	return a.encoder.Close()
}

// Name identifies the archive in publication errors.
func (a *Archive) Name() string {
	return "archive:" + string(a.store.Driver())
}

// Key returns the object key for the calendar day of t.
func Key(t time.Time) string {
	return keyPrefix + models.DayKey(t) + keySuffix
}

func dayFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, keySuffix) {
		return "", false
	}
	day := strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), keySuffix)
	if _, err := time.Parse(models.DayLayout, day); err != nil {
		return "", false
	}
	return day, true
}

// Write stores rows as the snapshot for the calendar day of day, stamped
// with the write time at.
func (a *Archive) Write(ctx context.Context, rows []models.Row, day, at time.Time) error {
	snap := Snapshot{
		Day:       models.DayKey(day),
		WrittenAt: at.Format(models.TimestampLayout),
		Rows:      rows,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return a.store.Put(ctx, Key(day), a.encoder.EncodeAll(raw, nil))
}

// ReadDay returns the snapshot for the calendar day of day, or nil when
// none was archived.
func (a *Archive) ReadDay(ctx context.Context, day time.Time) (*Snapshot, error) {
	return a.read(ctx, Key(day))
}

func (a *Archive) read(ctx context.Context, key string) (*Snapshot, error) {
	data, err := a.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := a.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, &models.DataFormatError{Source: key, Reason: "zstd: " + err.Error()}
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, &models.DataFormatError{Source: key, Reason: err.Error()}
	}
	return &snap, nil
}

// Days lists archived days, oldest first.
func (a *Archive) Days(ctx context.Context) ([]string, error) {
	objects, err := a.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	days := make([]string, 0, len(objects))
	for _, obj := range objects {
		if day, ok := dayFromKey(obj.Key); ok {
			days = append(days, day)
		}
	}
	return days, nil
}

// ReadPrior returns the latest snapshot for a day strictly before the
// calendar day of before, as a prior allocation. Empty when none exists.
func (a *Archive) ReadPrior(ctx context.Context, before time.Time) (models.PriorAllocation, error) {
	days, err := a.Days(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := models.DayKey(before)
	latest := ""
	for _, day := range days {
		if day < cutoff && day > latest {
			latest = day
		}
	}
	if latest == "" {
		return models.PriorAllocation{}, nil
	}

	snap, err := a.read(ctx, keyPrefix+latest+keySuffix)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return models.PriorAllocation{}, nil
	}
	return models.PriorFromRows(snap.Rows), nil
}
