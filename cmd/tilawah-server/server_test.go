package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tilawah/internal/quran"
)

type fakeSwitcher struct {
	eds      quran.Editions
	calls    []string
	transErr error
}

func (f *fakeSwitcher) Editions(context.Context) (quran.Editions, error) { return f.eds, nil }

func (f *fakeSwitcher) SetTranslation(_ context.Context, ed string) error {
	f.calls = append(f.calls, "translation "+ed)
	return f.transErr
}

func (f *fakeSwitcher) SetReciter(_ context.Context, ed string) error {
	f.calls = append(f.calls, "reciter "+ed)
	return nil
}

func TestApplyEditions(t *testing.T) {
	cur := quran.Editions{Text: "quran-uthmani", Translation: "en.asad", Audio: "ar.alafasy"}
	tests := []struct {
		name  string
		next  quran.Editions
		calls []string
	}{
		{"unchanged", cur, nil},
		{"translation", quran.Editions{Text: cur.Text, Translation: "ur.maududi", Audio: cur.Audio},
			[]string{"translation ur.maududi"}},
		{"both", quran.Editions{Text: cur.Text, Translation: "de.aburida", Audio: "ar.husary"},
			[]string{"translation de.aburida", "reciter ar.husary"}},
		{"text only", quran.Editions{Text: "quran-simple", Translation: cur.Translation, Audio: cur.Audio}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSwitcher{eds: cur}
			applyEditions(context.Background(), f, zap.NewNop(), tt.next)
			assert.Equal(t, tt.calls, f.calls)
		})
	}
}

func TestApplyEditionsLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := &fakeSwitcher{
		eds:      quran.Editions{Translation: "en.asad", Audio: "ar.alafasy"},
		transErr: errors.New("data unavailable"),
	}
	applyEditions(context.Background(), f, zap.New(core), quran.Editions{Translation: "tr.yazir", Audio: "ar.husary"})

	assert.Equal(t, []string{"translation tr.yazir", "reciter ar.husary"}, f.calls)
	assert.Equal(t, 1, logs.FilterMessage("switch translation").Len())
}
