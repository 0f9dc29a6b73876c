// Package ingest normalizes pre-classified activity records into events the
// store accepts. Records arrive one JSON object per line; sentiment must
// already be numeric.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/store"
)

// Record kinds.
const (
	KindEmotion  = "emotion"
	KindActivity = "activity"
)

// Record is one normalized line of input.
//
// Emotion records carry Intensity and Source. Activity records carry either
// DurationMinutes or End; when both are present DurationMinutes wins.
type Record struct {
	Kind            string     `json:"kind" validate:"required,oneof=emotion activity"`
	UserID          string     `json:"user_id,omitempty" validate:"omitempty,max=128"`
	Timestamp       time.Time  `json:"timestamp" validate:"required"`
	Category        string     `json:"category" validate:"required"`
	Intensity       *float64   `json:"intensity,omitempty" validate:"omitempty,gte=-1,lte=1"`
	Source          string     `json:"source,omitempty"`
	DurationMinutes *float64   `json:"duration_minutes,omitempty" validate:"omitempty,gte=0"`
	End             *time.Time `json:"end,omitempty"`
	ExternalID      string     `json:"external_id,omitempty" validate:"omitempty,max=256"`
}

var validate = validator.New()

// Validate checks structural constraints on the record.
func (r Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s%s", strings.ToLower(fe.Field()), fe.Tag(), param(fe.Param())))
			}
			return fmt.Errorf("invalid record: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid record: %w", err)
	}

	switch r.Kind {
	case KindEmotion:
		if r.Intensity == nil {
			return fmt.Errorf("invalid record: emotion requires intensity")
		}
		if r.Source == "" {
			return fmt.Errorf("invalid record: emotion requires source")
		}
	case KindActivity:
		if r.DurationMinutes == nil && r.End == nil {
			return fmt.Errorf("invalid record: activity requires duration_minutes or end")
		}
		if r.DurationMinutes == nil && r.End.Before(r.Timestamp) {
			return fmt.Errorf("invalid record: end %s before timestamp %s",
				r.End.Format(time.RFC3339), r.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

func param(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// Emotion converts an emotion record into a store record.
func (r Record) Emotion() (store.EmotionRecord, error) {
	if r.Kind != KindEmotion {
		return store.EmotionRecord{}, fmt.Errorf("record kind %q is not %s", r.Kind, KindEmotion)
	}
	if err := r.Validate(); err != nil {
		return store.EmotionRecord{}, err
	}
	cat, err := affect.ParseCategory(r.Category)
	if err != nil {
		return store.EmotionRecord{}, err
	}
	src, err := affect.ParseSource(r.Source)
	if err != nil {
		return store.EmotionRecord{}, err
	}
	return store.EmotionRecord{
		Event: affect.EmotionEvent{
			Timestamp:    r.Timestamp,
			Category:     cat,
			RawIntensity: *r.Intensity,
			Source:       src,
		},
		ExternalID: r.ExternalID,
	}, nil
}

// Activity converts an activity record into a store record.
func (r Record) Activity() (store.ActivityRecord, error) {
	if r.Kind != KindActivity {
		return store.ActivityRecord{}, fmt.Errorf("record kind %q is not %s", r.Kind, KindActivity)
	}
	if err := r.Validate(); err != nil {
		return store.ActivityRecord{}, err
	}
	cat, err := affect.ParseCategory(r.Category)
	if err != nil {
		return store.ActivityRecord{}, err
	}
	var minutes float64
	if r.DurationMinutes != nil {
		minutes = *r.DurationMinutes
	} else {
		minutes = r.End.Sub(r.Timestamp).Minutes()
	}
	return store.ActivityRecord{
		Event: affect.ActivityEvent{
			Timestamp:       r.Timestamp,
			DurationMinutes: minutes,
			Category:        cat,
		},
		ExternalID: r.ExternalID,
	}, nil
}

// Batch groups converted records for a single user.
type Batch struct {
	Emotions   []store.EmotionRecord
	Activities []store.ActivityRecord
}

// Len returns the total number of records in the batch.
func (b *Batch) Len() int { return len(b.Emotions) + len(b.Activities) }

// Add converts r and appends it to the batch.
func (b *Batch) Add(r Record) error {
	switch r.Kind {
	case KindEmotion:
		rec, err := r.Emotion()
		if err != nil {
			return err
		}
		b.Emotions = append(b.Emotions, rec)
	case KindActivity:
		rec, err := r.Activity()
		if err != nil {
			return err
		}
		b.Activities = append(b.Activities, rec)
	default:
		return r.Validate()
	}
	return nil
}

// Append writes the whole batch for userID in one transaction and returns how
// many rows were new. On error nothing from the batch is stored.
func (b *Batch) Append(db *store.DB, userID string) (emotions, activities int, err error) {
	return db.AppendEvents(userID, b.Emotions, b.Activities)
}
