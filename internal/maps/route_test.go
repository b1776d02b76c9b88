package maps

import (
	"context"
	"errors"
	"testing"

	"ridecore/internal/domain"
)

type failing struct{}

func (failing) DistanceKm(context.Context, domain.Point, domain.Point) (float64, error) {
	return 0, errors.New("quota exceeded")
}

type fixed float64

func (f fixed) DistanceKm(context.Context, domain.Point, domain.Point) (float64, error) {
	return float64(f), nil
}

func TestFallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	from := domain.Point{Lat: 0, Lng: 0}
	to := domain.Point{Lat: 0, Lng: 1}

	d, err := Fallback{Primary: failing{}}.DistanceKm(ctx, from, to)
	if err != nil {
		t.Fatalf("fallback must not fail: %v", err)
	}
	if d < 111 || d > 111.3 {
		t.Errorf("expected ~111.19 km straight line, got %v", d)
	}

	d, _ = Fallback{Primary: fixed(123.45)}.DistanceKm(ctx, from, to)
	if d != 123.45 {
		t.Errorf("expected primary answer, got %v", d)
	}
}
