package overlay

import (
	"errors"
	"sync"
	"testing"
)

func TestParsePreset(t *testing.T) {
	tests := []struct {
		in      string
		want    SizePreset
		wantErr bool
	}{
		{"small", SizeSmall, false},
		{" Medium ", SizeMedium, false},
		{"LARGE", SizeLarge, false},
		{"xl", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePreset(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePreset(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnknownPreset) {
			t.Errorf("ParsePreset(%q) error = %v, want ErrUnknownPreset", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParsePreset(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSizeControlDefaults(t *testing.T) {
	c := NewSizeControl()
	if got := c.Multiplier(); got != NeutralScale {
		t.Errorf("default multiplier = %v, want %v", got, NeutralScale)
	}
	if got := c.Preset(); got != "" {
		t.Errorf("default preset = %q, want empty", got)
	}

	var zero SizeControl
	if m, p := zero.Snapshot(); m != NeutralScale || p != "" {
		t.Errorf("zero value snapshot = %v %q, want neutral", m, p)
	}
}

func TestSizeControlPresetAndSlider(t *testing.T) {
	c := NewSizeControl()

	if err := c.SetPreset(SizeLarge); err != nil {
		t.Fatalf("SetPreset: %v", err)
	}
	if got := c.Multiplier(); got != 1.15 {
		t.Errorf("large multiplier = %v, want 1.15", got)
	}
	if got := c.Preset(); got != SizeLarge {
		t.Errorf("preset = %q, want large", got)
	}

	if err := c.SetSlider(1.7); err != nil {
		t.Fatalf("SetSlider: %v", err)
	}
	if got := c.Multiplier(); got != 1.7 {
		t.Errorf("slider multiplier = %v, want 1.7", got)
	}
	if got := c.Preset(); got != "" {
		t.Errorf("preset after slider = %q, want empty", got)
	}

	for _, v := range []float64{0.49, 2.01, -1} {
		if err := c.SetSlider(v); !errors.Is(err, ErrSliderRange) {
			t.Errorf("SetSlider(%v) error = %v, want ErrSliderRange", v, err)
		}
	}
	if got := c.Multiplier(); got != 1.7 {
		t.Errorf("rejected slider changed multiplier to %v", got)
	}

	if err := c.SetPreset("huge"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("SetPreset(huge) error = %v", err)
	}
}

func TestSizeControlConcurrentReaders(t *testing.T) {
	c := NewSizeControl()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = c.SetSlider(SliderMin + float64(i%15)*0.1)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if m := c.Multiplier(); m < SliderMin || m > SliderMax {
					t.Errorf("observed multiplier %v outside slider range", m)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSizeControlSnapshotIsConsistent(t *testing.T) {
	c := NewSizeControl()
	stop := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		presets := []SizePreset{SizeSmall, SizeMedium, SizeLarge}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				_ = c.SetPreset(presets[i%len(presets)])
			} else {
				_ = c.SetSlider(1.8)
			}
		}
	}()

	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 5000; i++ {
				m, p := c.Snapshot()
				want := 1.8
				if p != "" {
					want = presetMultipliers[p]
				} else if m == NeutralScale {
					continue
				}
				if m != want {
					t.Errorf("snapshot paired multiplier %v with preset %q", m, p)
					return
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	<-writerDone
}
