package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockDLQPurger struct {
	purgeFunc func(ctx context.Context, retention time.Duration) (int, error)
	calls     int
}

func (m *mockDLQPurger) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	m.calls++
	if m.purgeFunc != nil {
		return m.purgeFunc(ctx, retention)
	}
	return 0, nil
}

func TestGarbageCollector_Collect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		purgeFunc func(ctx context.Context, retention time.Duration) (int, error)
		retention time.Duration
		wantErr   bool
	}{
		{
			name: "purges expired recording jobs with configured retention",
			purgeFunc: func(_ context.Context, retention time.Duration) (int, error) {
				if retention != 24*time.Hour {
					return 0, errors.New("unexpected retention")
				}
				return 3, nil
			},
			retention: 24 * time.Hour,
		},
		{
			name: "broker failure surfaces as error",
			purgeFunc: func(context.Context, time.Duration) (int, error) {
				return 0, errors.New("purge failed")
			},
			retention: time.Hour,
			wantErr:   true,
		},
		{
			name:      "nothing to purge is not an error",
			retention: time.Hour,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockDLQPurger{purgeFunc: tt.purgeFunc}
			gc := NewGarbageCollector(mock, time.Minute, tt.retention, nil)

			err := gc.collect(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("collect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if mock.calls != 1 {
				t.Errorf("expected exactly one purge call, got %d", mock.calls)
			}
		})
	}
}

func TestGarbageCollector_Collect_NilPurger(t *testing.T) {
	t.Parallel()
	gc := NewGarbageCollector(nil, time.Minute, 24*time.Hour, nil)
	if err := gc.collect(context.Background()); err != nil {
		t.Errorf("collect with nil purger: %v", err)
	}
}

func TestGarbageCollector_Start_StopsOnContextCancel(t *testing.T) {
	t.Parallel()
	gc := NewGarbageCollector(&mockDLQPurger{}, 24*time.Hour, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gc.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
