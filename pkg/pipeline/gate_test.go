package pipeline

import (
	"testing"
	"time"
)

func TestGateShouldFire(t *testing.T) {
	base := time.Now()
	gate := Gate{MinWords: 30, MinInterval: 45 * time.Second}

	tests := []struct {
		name         string
		watermark    Watermark
		currentWords int
		now          time.Time
		want         bool
	}{
		{
			name:         "first run below word threshold",
			watermark:    Watermark{},
			currentWords: 10,
			now:          base,
			want:         false,
		},
		{
			name:         "first run at word threshold",
			watermark:    Watermark{},
			currentWords: 30,
			now:          base,
			want:         true,
		},
		{
			name:         "below both thresholds",
			watermark:    Watermark{Words: 100, At: base},
			currentWords: 110,
			now:          base.Add(10 * time.Second),
			want:         false,
		},
		{
			name:         "word threshold alone",
			watermark:    Watermark{Words: 100, At: base},
			currentWords: 130,
			now:          base.Add(time.Second),
			want:         true,
		},
		{
			name:         "interval alone with some new words",
			watermark:    Watermark{Words: 100, At: base},
			currentWords: 105,
			now:          base.Add(50 * time.Second),
			want:         true,
		},
		{
			name:         "interval elapsed with nothing new still fires",
			watermark:    Watermark{Words: 100, At: base},
			currentWords: 100,
			now:          base.Add(time.Minute),
			want:         true,
		},
		{
			name:         "no prior run ignores interval",
			watermark:    Watermark{},
			currentWords: 5,
			now:          base.Add(time.Hour),
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gate.ShouldFire(tt.watermark, tt.currentWords, tt.now)
			if got != tt.want {
				t.Errorf("ShouldFire() = %v, want %v", got, tt.want)
			}
		})
	}
}
