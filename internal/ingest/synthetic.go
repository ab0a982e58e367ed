package ingest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// SyntheticSource generates a representative event stream for demos and
// tests: session-shaped bursts with a realistic view/cart/purchase mix, a few
// events without a session, and products missing brand or category metadata.
// The same seed always yields the same stream.
type SyntheticSource struct {
	Events int
	Seed   int64

	generated []Event
	offset    int
}

const (
	syntheticUsers    = 1000
	syntheticProducts = 200
)

var syntheticBrands = []string{"acme", "globex", "initech", "umbrella", "hooli"}

var syntheticCategories = []string{
	"electronics.smartphone",
	"electronics.audio.headphone",
	"appliances.kitchen.refrigerator",
	"apparel.shoes",
	"computers.notebook",
}

func (ss *SyntheticSource) Name() string {
	return "synthetic"
}

func (ss *SyntheticSource) Open(ctx context.Context) error {
	if ss.Events <= 0 {
		return fmt.Errorf("synthetic source needs a positive event count, got %d", ss.Events)
	}

	rng := rand.New(rand.NewSource(ss.Seed))
	base := time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC)
	events := make([]Event, 0, ss.Events)

	for len(events) < ss.Events {
		userID := int64(1 + rng.Intn(syntheticUsers))
		session := uuid.New().String()
		// Roughly 2% of events arrive without a session identifier.
		if rng.Float64() < 0.02 {
			session = ""
		}
		start := base.Add(time.Duration(rng.Intn(60*24)) * time.Hour)

		sessionEvents := 1 + rng.Intn(12)
		for i := 0; i < sessionEvents && len(events) < ss.Events; i++ {
			productID := int64(1 + rng.Intn(syntheticProducts))

			eventType := "view"
			switch roll := rng.Float64(); {
			case roll < 0.10:
				eventType = "purchase"
			case roll < 0.25:
				eventType = "cart"
			case roll < 0.30:
				eventType = "remove_from_cart"
			}

			brand := syntheticBrands[productID%int64(len(syntheticBrands))]
			category := syntheticCategories[productID%int64(len(syntheticCategories))]
			// Sparse metadata, the same way the real feeds are sparse.
			if productID%7 == 0 {
				brand = ""
			}
			if productID%11 == 0 {
				category = ""
			}

			events = append(events, Event{
				EventTime:    start.Add(time.Duration(i*15) * time.Second),
				EventType:    eventType,
				ProductID:    productID,
				CategoryID:   productID % 20,
				CategoryCode: category,
				Brand:        brand,
				Price:        float64(5+rng.Intn(500)) + 0.99,
				UserID:       userID,
				UserSession:  session,
			})
		}
	}

	ss.generated = events
	ss.offset = 0
	return nil
}

func (ss *SyntheticSource) Next(ctx context.Context, batch []Event) (int, error) {
	if ss.offset >= len(ss.generated) {
		return 0, io.EOF
	}
	n := copy(batch, ss.generated[ss.offset:])
	ss.offset += n
	return n, nil
}

func (ss *SyntheticSource) Close() error {
	ss.generated = nil
	return nil
}
