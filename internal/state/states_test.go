// internal/state/states_test.go
package state

import "testing"

func TestPageCount(t *testing.T) {
	cases := []struct {
		total, want int
	}{
		{0, 1},
		{1, 1},
		{PageSize, 1},
		{PageSize + 1, 2},
		{3 * PageSize, 3},
		{-5, 1},
	}
	for _, c := range cases {
		if got := PageCount(c.total); got != c.want {
			t.Errorf("PageCount(%d) = %d, want %d", c.total, got, c.want)
		}
	}
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		total, page, want int
	}{
		{40, -1, 0},
		{40, 0, 0},
		{40, 2, 2},
		{40, 3, 2},
		{40, 100, 2},
		{0, 5, 0},
	}
	for _, c := range cases {
		if got := ClampPage(c.total, c.page); got != c.want {
			t.Errorf("ClampPage(%d, %d) = %d, want %d", c.total, c.page, got, c.want)
		}
	}
}

func TestPageBounds(t *testing.T) {
	// 20 items: page 0 is [0,15), page 1 is [15,20)
	start, end := PageBounds(20, 0)
	if start != 0 || end != PageSize {
		t.Errorf("page 0 bounds = [%d,%d), want [0,%d)", start, end, PageSize)
	}
	start, end = PageBounds(20, 1)
	if start != PageSize || end != 20 {
		t.Errorf("page 1 bounds = [%d,%d), want [%d,20)", start, end, PageSize)
	}

	// Out-of-range page clamps to the last page
	start, end = PageBounds(20, 9)
	if start != PageSize || end != 20 {
		t.Errorf("clamped bounds = [%d,%d), want [%d,20)", start, end, PageSize)
	}

	// Empty list yields an empty window
	start, end = PageBounds(0, 0)
	if start != 0 || end != 0 {
		t.Errorf("empty bounds = [%d,%d), want [0,0)", start, end)
	}
}

func TestAwaitsText(t *testing.T) {
	cases := []struct {
		state Conversation
		want  bool
	}{
		{SelectingProject{}, true},
		{FillingField{}, true},
		{WaitingForComment{}, true},
		{WaitingForIssueKey{}, true},
		{AssigningIssue{}, true},
		{SearchPaging{}, true},
		{SearchPaging{Query: "project = TEST"}, false},
		{SelectingIssueType{}, false},
		{ConfirmingCreation{}, false},
	}
	for _, c := range cases {
		if got := AwaitsText(c.state); got != c.want {
			t.Errorf("AwaitsText(%T%+v) = %v, want %v", c.state, c.state, got, c.want)
		}
	}
}

func TestDraftWithValue(t *testing.T) {
	d := Draft{ProjectID: "10000", IssueTypeID: "3"}

	d1 := d.WithValue("summary", "first")
	d2 := d1.WithValue("description", "details")
	d3 := d2.WithValue("summary", "second")

	// Originals are untouched
	if len(d.Values) != 0 {
		t.Errorf("base draft mutated: %v", d.Values)
	}
	if v, _ := d1.Value("summary"); v != "first" {
		t.Errorf("d1 summary = %q, want first", v)
	}

	// Replacement preserves order
	if len(d3.Values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(d3.Values))
	}
	if d3.Values[0].FieldID != "summary" || d3.Values[0].Value != "second" {
		t.Errorf("unexpected first value: %+v", d3.Values[0])
	}
	if d3.Values[1].FieldID != "description" {
		t.Errorf("unexpected second value: %+v", d3.Values[1])
	}
}

func TestDraftValueMissing(t *testing.T) {
	d := Draft{}
	if _, ok := d.Value("summary"); ok {
		t.Error("expected missing value")
	}
}
