package osm

import (
	"testing"

	"github.com/paulmach/osm"

	"routex/pkg/speed"
)

func TestIsAccessible(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		mode speed.Mode
		want bool
	}{
		{
			name: "residential road, auto",
			tags: osm.Tags{{Key: "highway", Value: "residential"}},
			mode: speed.Auto,
			want: true,
		},
		{
			name: "private access, auto",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "access", Value: "private"},
			},
			mode: speed.Auto,
			want: false,
		},
		{
			name: "no access, auto",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "access", Value: "no"},
			},
			mode: speed.Auto,
			want: false,
		},
		{
			name: "motor_vehicle=no, auto",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "motor_vehicle", Value: "no"},
			},
			mode: speed.Auto,
			want: false,
		},
		{
			name: "bicycle=no, bicycle mode",
			tags: osm.Tags{
				{Key: "highway", Value: "cycleway"},
				{Key: "bicycle", Value: "no"},
			},
			mode: speed.Bicycle,
			want: false,
		},
		{
			name: "bicycle=no does not block auto",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "bicycle", Value: "no"},
			},
			mode: speed.Auto,
			want: true,
		},
		{
			name: "foot=no, pedestrian mode",
			tags: osm.Tags{
				{Key: "highway", Value: "footway"},
				{Key: "foot", Value: "no"},
			},
			mode: speed.Pedestrian,
			want: false,
		},
		{
			name: "area=yes (pedestrian plaza)",
			tags: osm.Tags{
				{Key: "highway", Value: "service"},
				{Key: "area", Value: "yes"},
			},
			mode: speed.Auto,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAccessible(tt.tags, tt.mode); got != tt.want {
				t.Errorf("isAccessible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDirectionFlags(t *testing.T) {
	tests := []struct {
		name         string
		tags         osm.Tags
		wantForward  bool
		wantBackward bool
	}{
		{
			name:         "default bidirectional",
			tags:         osm.Tags{{Key: "highway", Value: "residential"}},
			wantForward:  true,
			wantBackward: true,
		},
		{
			name:         "motorway implied oneway",
			tags:         osm.Tags{{Key: "highway", Value: "motorway"}},
			wantForward:  true,
			wantBackward: false,
		},
		{
			name:         "motorway_link implied oneway",
			tags:         osm.Tags{{Key: "highway", Value: "motorway_link"}},
			wantForward:  true,
			wantBackward: false,
		},
		{
			name: "roundabout implied oneway",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "junction", Value: "roundabout"},
			},
			wantForward:  true,
			wantBackward: false,
		},
		{
			name: "explicit oneway=yes",
			tags: osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "yes"},
			},
			wantForward:  true,
			wantBackward: false,
		},
		{
			name: "explicit oneway=true",
			tags: osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "true"},
			},
			wantForward:  true,
			wantBackward: false,
		},
		{
			name: "explicit oneway=1",
			tags: osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "1"},
			},
			wantForward:  true,
			wantBackward: false,
		},
		{
			name: "explicit oneway=-1 (reverse)",
			tags: osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "-1"},
			},
			wantForward:  false,
			wantBackward: true,
		},
		{
			name: "explicit oneway=reverse",
			tags: osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "reverse"},
			},
			wantForward:  false,
			wantBackward: true,
		},
		{
			name: "explicit oneway=no overrides implied",
			tags: osm.Tags{
				{Key: "highway", Value: "motorway"},
				{Key: "oneway", Value: "no"},
			},
			wantForward:  true,
			wantBackward: true,
		},
		{
			name: "oneway=reversible skips entirely",
			tags: osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "reversible"},
			},
			wantForward:  false,
			wantBackward: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd, bwd := directionFlags(tt.tags)
			if fwd != tt.wantForward || bwd != tt.wantBackward {
				t.Errorf("directionFlags() = (%v, %v), want (%v, %v)", fwd, bwd, tt.wantForward, tt.wantBackward)
			}
		})
	}
}

func TestAccessTag(t *testing.T) {
	cases := []struct {
		mode speed.Mode
		want string
	}{
		{speed.Auto, "motor_vehicle"},
		{speed.Bicycle, "bicycle"},
		{speed.Pedestrian, "foot"},
	}
	for _, c := range cases {
		if got := accessTag(c.mode); got != c.want {
			t.Errorf("accessTag(%q) = %q, want %q", c.mode, got, c.want)
		}
	}
}
