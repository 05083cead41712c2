package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"oneoftools/internal/models"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
)

var lamportsPerSol = decimal.New(1, 9)

// LamportsToSol converts an integer lamport amount to SOL
func LamportsToSol(lamports int64) float64 {
	return decimal.NewFromInt(lamports).Div(lamportsPerSol).InexactFloat64()
}

// WindowVolumes are the trailing volumes of a collection in SOL
type WindowVolumes struct {
	Day   float64
	Week  float64
	Month float64
}

// RecordResult describes what recording an activity changed
type RecordResult struct {
	Collection *models.Collection
	Event      *models.NFTEvent
	// Duplicate is true when the signature was already in the tracked log
	Duplicate bool
}

// Aggregator appends tracked activities and keeps collection stats current in the same transaction
type Aggregator struct {
	db    *gorm.DB
	store *EventStore
	now   func() time.Time
}

func NewAggregator(db *gorm.DB, store *EventStore) *Aggregator {
	return &Aggregator{db: db, store: store, now: time.Now}
}

// WithClock replaces the time source used for windows
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Record appends activity to the tracked log of slug and, for mints and sales, recomputes the
// trailing windows, bumps the lifetime total and the ATH sale. All reads precede all writes
// and everything commits together.
func (a *Aggregator) Record(ctx context.Context, slug string, activity *models.NFTActivity) (*RecordResult, error) {
	var result RecordResult

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		collection, err := lockCollection(tx, slug)
		if err != nil {
			return err
		}

		seen, err := a.store.HasTrackedEvent(tx, activity.Signature)
		if err != nil {
			return err
		}

		qualifies := activity.Type.AffectsVolume()
		var windowEvents []models.NFTEvent
		now := a.now()
		if qualifies {
			if err := tx.Where("collection_slug = ? AND event_type IN ? AND block_time > ?",
				slug, models.VolumeTypes, now.Add(-month).Unix()).
				Find(&windowEvents).Error; err != nil {
				return err
			}
		}

		if err := a.store.AppendTracked(tx, slug, activity); err != nil {
			return err
		}

		if qualifies {
			volumes := computeWindows(windowEvents, activity, now)
			updates := map[string]interface{}{
				"day_volume":   volumes.Day,
				"week_volume":  volumes.Week,
				"month_volume": volumes.Month,
			}
			collection.DayVolume = volumes.Day
			collection.WeekVolume = volumes.Week
			collection.MonthVolume = volumes.Month

			if !seen {
				total := decimal.NewFromFloat(collection.TotalVolume).
					Add(decimal.NewFromInt(activity.Amount).Div(lamportsPerSol)).
					InexactFloat64()
				updates["total_volume"] = total
				collection.TotalVolume = total
			}

			if ath := nextAthSale(collection.AthSale, activity); ath != collection.AthSale {
				updates["ath_sale"] = ath
				collection.AthSale = ath
			}

			if err := tx.Model(&models.Collection{}).Where("slug = ?", slug).Updates(updates).Error; err != nil {
				return err
			}
		}

		result = RecordResult{
			Collection: collection,
			Event:      &models.NFTEvent{NFTActivity: *activity, CollectionSlug: slug},
			Duplicate:  seen,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"slug":      slug,
		"signature": activity.Signature,
		"type":      activity.Type,
		"duplicate": result.Duplicate,
	}).Info("Recorded activity")
	return &result, nil
}

// computeWindows sums the trailing windows over the stored events plus the one being recorded.
// A stored copy of the recorded signature is replaced by the incoming activity.
func computeWindows(stored []models.NFTEvent, incoming *models.NFTActivity, now time.Time) WindowVolumes {
	dayStart := now.Add(-day).Unix()
	weekStart := now.Add(-week).Unix()
	monthStart := now.Add(-month).Unix()

	var daySum, weekSum, monthSum decimal.Decimal
	add := func(activity *models.NFTActivity) {
		amount := decimal.NewFromInt(activity.Amount)
		if activity.Timestamp > monthStart {
			monthSum = monthSum.Add(amount)
		}
		if activity.Timestamp > weekStart {
			weekSum = weekSum.Add(amount)
		}
		if activity.Timestamp > dayStart {
			daySum = daySum.Add(amount)
		}
	}

	for i := range stored {
		if stored[i].Signature == incoming.Signature {
			continue
		}
		add(&stored[i].NFTActivity)
	}
	add(incoming)

	return WindowVolumes{
		Day:   daySum.Div(lamportsPerSol).InexactFloat64(),
		Week:  weekSum.Div(lamportsPerSol).InexactFloat64(),
		Month: monthSum.Div(lamportsPerSol).InexactFloat64(),
	}
}

// nextAthSale returns the ATH after activity; ties keep the earlier sale and free mints never count
func nextAthSale(current *models.AthSale, activity *models.NFTActivity) *models.AthSale {
	amount := LamportsToSol(activity.Amount)
	if amount <= 0 || (current != nil && amount <= current.Amount) {
		return current
	}
	return &models.AthSale{
		Amount:    amount,
		Buyer:     activity.Buyer,
		Seller:    activity.Seller,
		Mint:      activity.Mint,
		Name:      activity.Name,
		Signature: activity.Signature,
		Source:    activity.Source,
		Timestamp: activity.Timestamp,
	}
}
