package sanitize

import (
	"reflect"
	"testing"
)

func TestText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Thankful for rain  ", "Thankful for rain"},
		{"tags", "<b>Praise</b> the <i>Lord</i>", "Praise the Lord"},
		{"script", "hi<script>alert(1)</script> there", "hi there"},
		{"style", "<style>p{}</style>ok", "ok"},
		{"entities", "faith &amp; hope", "faith & hope"},
		{"break", "line one<br/>line two", "line one\nline two"},
		{"comparison", "a < b", "a < b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Text(tc.in); got != tc.want {
				t.Fatalf("Text(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestLinesDropsEmpty(t *testing.T) {
	got := Lines([]string{"<b>family</b>", "  ", "<script>x</script>", "health"})
	want := []string{"family", "health"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lines = %v, want %v", got, want)
	}
}
