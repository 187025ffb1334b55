package catalog

import (
	"fmt"
	"go-batch-harness/internal/models"
	"go-batch-harness/internal/units"
	"os"
	"time"

	"github.com/tjarratt/babble"
)

const dictionaryPath = "/usr/share/dict/words"

// used when the host has no system dictionary
var fallbackWords = []string{
	"amber", "basalt", "cinder", "delta", "ember", "fjord", "garnet", "harbor",
	"indigo", "juniper", "kestrel", "lagoon", "meadow", "nectar", "orchid", "pebble",
}

type CatalogService interface {
	Batch() []models.WorkUnit
}

// Catalog builds the demonstration batch: two units that outlive their
// deadline, one quick unit, one that crashes and one real HTTP fetch.
type Catalog struct {
	long    time.Duration // duration of the units expected to time out
	short   time.Duration
	fetcher units.FetcherService
	babbler babble.Babbler
}

func NewCatalog(long, short time.Duration, fetcher units.FetcherService) (*Catalog, error) {
	if short <= 0 || long <= short {
		return nil, fmt.Errorf("durations must satisfy 0 < short < long, got short=%s long=%s", short, long)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	return &Catalog{
		long:    long,
		short:   short,
		fetcher: fetcher,
		babbler: newBabbler(),
	}, nil
}

func newBabbler() babble.Babbler {
	if _, err := os.Stat(dictionaryPath); err == nil {
		b := babble.NewBabbler()
		b.Count = 2
		return b
	}
	return babble.Babbler{
		Count:     2,
		Separator: "-",
		Words:     fallbackWords,
	}
}

// Batch returns task1..task5. Payloads are "testN" followed by a random tag so
// runs can be told apart in the logs.
func (c *Catalog) Batch() []models.WorkUnit {
	payload := func(i int) string {
		return fmt.Sprintf("test%d %s", i, c.babbler.Babble())
	}
	return []models.WorkUnit{
		{Name: "task1", Payload: payload(1), Run: units.Sleep("run1", c.long)},
		{Name: "task2", Payload: payload(2), Run: units.Sleep("run2", c.long)},
		{Name: "task3", Payload: payload(3), Run: units.Sleep("run3", c.short)},
		{Name: "task4", Payload: payload(4), Run: units.Crash("run4", c.short)},
		{Name: "task5", Payload: payload(5), Run: c.fetcher.Fetch},
	}
}
