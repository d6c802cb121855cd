package bot

import "testing"

func TestFormatPrice(t *testing.T) {
	cases := map[int64]string{
		3_000_000: "3M تومان",
		1_250_000: "1.250M تومان",
		599_000:   "599K تومان",
		1_050_000: "1.050M تومان",
		539_100:   "539,100 تومان",
		750:       "750 تومان",
	}
	for in, want := range cases {
		if got := FormatPrice(in); got != want {
			t.Errorf("FormatPrice(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestParseGrant(t *testing.T) {
	target, course, n, err := parseGrant([]string{"42", "online_weights", "unlimited"})
	if err != nil || target != 42 || course != "online_weights" || n != -1 {
		t.Fatalf("unlimited grant = %d %q %d %v", target, course, n, err)
	}
	if _, _, n, err := parseGrant([]string{"42", "online_weights", "2"}); err != nil || n != 2 {
		t.Fatalf("grant 2 = %d %v", n, err)
	}
	for _, args := range [][]string{
		{"42", "online_weights"},
		{"x", "online_weights", "1"},
		{"42", "online_weights", "0"},
	} {
		if _, _, _, err := parseGrant(args); err == nil {
			t.Errorf("parseGrant(%v) accepted", args)
		}
	}
}

func TestAdmins(t *testing.T) {
	a := NewAdmins([]int64{1, 2}, 2)
	if !a.IsAdmin(1) || a.IsAdmin(3) {
		t.Fatalf("IsAdmin wrong")
	}
	if !a.IsSuperAdmin(2) || a.IsSuperAdmin(1) {
		t.Fatalf("IsSuperAdmin wrong")
	}
	ids := a.AdminIDs()
	ids[0] = 99
	if a.IsAdmin(99) {
		t.Fatalf("AdminIDs must return a copy")
	}
	var none *Admins
	if none.IsAdmin(1) || none.AdminIDs() != nil {
		t.Fatalf("nil Admins must deny")
	}
}
