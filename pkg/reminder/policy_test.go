package reminder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/charlie0129/battrem/pkg/powerinfo"
)

func TestEvaluateScenarios(t *testing.T) {
	th := Thresholds{MinPercent: 20, MaxPercent: 80}
	tests := []struct {
		name    string
		reading powerinfo.Reading
		want    Decision
	}{
		{"below min unplugged", powerinfo.Reading{Percent: 15, IsCharging: false}, Low},
		{"below min charging", powerinfo.Reading{Percent: 15, IsCharging: true}, None},
		{"above max charging", powerinfo.Reading{Percent: 85, IsCharging: true}, High},
		{"above max unplugged", powerinfo.Reading{Percent: 85, IsCharging: false}, None},
		{"exactly min", powerinfo.Reading{Percent: 20, IsCharging: false}, None},
		{"exactly max", powerinfo.Reading{Percent: 80, IsCharging: true}, None},
		{"in range", powerinfo.Reading{Percent: 50, IsCharging: false}, None},
		{"unavailable sentinel", powerinfo.Unavailable, Low},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.reading, th))
		})
	}
}

func TestEvaluateExhaustive(t *testing.T) {
	for min := 1; min <= 100; min += 7 {
		for max := min + 1; max <= 100; max += 5 {
			th := Thresholds{MinPercent: min, MaxPercent: max}
			for percent := 0; percent <= 100; percent++ {
				for _, charging := range []bool{false, true} {
					r := powerinfo.Reading{Percent: percent, IsCharging: charging}
					want := None
					switch {
					case percent < min && !charging:
						want = Low
					case percent > max && charging:
						want = High
					}
					if got := Evaluate(r, th); got != want {
						t.Fatalf("Evaluate(%+v, %+v) = %s, want %s", r, th, got, want)
					}
				}
			}
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		th      Thresholds
		wantErr bool
	}{
		{Thresholds{20, 80}, false},
		{Thresholds{1, 2}, false},
		{Thresholds{99, 100}, false},
		{Thresholds{80, 80}, true},
		{Thresholds{85, 80}, true},
		{Thresholds{0, 80}, true},
		{Thresholds{20, 101}, true},
	}
	for _, tt := range tests {
		err := tt.th.Validate()
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidThreshold, "%+v", tt.th)
		} else {
			assert.NoError(t, err, "%+v", tt.th)
		}
	}
}

func TestContent(t *testing.T) {
	title, body := Content(Low, 15)
	assert.Equal(t, "Low Battery 15%!", title)
	assert.Equal(t, "Please plug in your charger.", body)

	title, body = Content(High, 85)
	assert.Equal(t, "High Battery 85%!", title)
	assert.Equal(t, "Please unplug your charger.", body)

	title, body = Content(None, 50)
	assert.Empty(t, title)
	assert.Empty(t, body)
}

func TestDecisionText(t *testing.T) {
	for _, d := range []Decision{None, Low, High} {
		b, err := d.MarshalText()
		assert.NoError(t, err)
		var got Decision
		assert.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, d, got)
	}
	var d Decision
	assert.Error(t, d.UnmarshalText([]byte("medium")))
	assert.Equal(t, "unknown", Decision(42).String())
}
