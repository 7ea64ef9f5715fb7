package reminder

import (
	"hash/fnv"
	"math/rand"
	"sort"
	"time"

	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/pkg/utils"
)

// Slots returns the minutes of the day at which the reminder fires on day.
// Random slots are drawn from a source seeded by key and the date, so every
// scheduler tick of the same day sees the same slots.
func Slots(r *models.Reminder, key string, day time.Time) []int {
	if r == nil {
		return nil
	}

	start, end, ok := window(r)
	if !ok {
		return nil
	}

	switch r.Type {
	case models.ReminderFixedWindow:
		return []int{start}
	case models.ReminderRandom:
		if r.Frequency < 1 {
			return nil
		}
		rnd := rand.New(rand.NewSource(seed(key, day)))
		slots := make([]int, 0, r.Frequency)
		for i := 0; i < r.Frequency; i++ {
			slots = append(slots, start+rnd.Intn(end-start))
		}
		sort.Ints(slots)
		return slots
	default:
		return nil
	}
}

// Fires reports whether the reminder has a slot at the minute of now.
// now must already be in the user's timezone.
func Fires(r *models.Reminder, key string, now time.Time) bool {
	minute := utils.MinuteOfDay(now)
	for _, slot := range Slots(r, key, now) {
		if slot == minute {
			return true
		}
	}
	return false
}

func window(r *models.Reminder) (int, int, bool) {
	start, err := utils.ParseClock(r.WindowStart)
	if err != nil {
		return 0, 0, false
	}
	end, err := utils.ParseClock(r.WindowEnd)
	if err != nil || end <= start {
		return 0, 0, false
	}
	return start, end, true
}

func seed(key string, day time.Time) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	_, _ = h.Write([]byte(utils.DayKey(day)))
	return int64(h.Sum64())
}
