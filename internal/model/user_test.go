package model

import "testing"

func TestProfileValid(t *testing.T) {
	cases := []struct {
		name string
		p    Profile
		want bool
	}{
		{"complete", Profile{ID: "u1", Name: "Ann", Email: "ann@example.com"}, true},
		{"no id", Profile{Name: "Ann", Email: "ann@example.com"}, false},
		{"no name", Profile{ID: "u1", Email: "ann@example.com"}, false},
		{"no email", Profile{ID: "u1", Name: "Ann"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.Valid(); got != tc.want {
				t.Fatalf("Valid() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestProfileInitials(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Ann Smith", "AS"},
		{"ann", "A"},
		{"ann  marie smith", "AM"},
		{"Мария Иванова", "МИ"},
		{"Мария", "М"},
		{"", ""},
	}
	for _, tc := range cases {
		p := Profile{Name: tc.name}
		if got := p.Initials(); got != tc.want {
			t.Fatalf("Initials(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
