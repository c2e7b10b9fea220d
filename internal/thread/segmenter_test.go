package thread

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/welldanyogia/mailclean/internal/sanitizer"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Segment
	}{
		{
			name: "no quote",
			in:   "Hello, thanks!",
			want: []Segment{{Content: "Hello, thanks!"}},
		},
		{
			name: "single level",
			in:   "Thanks!\n\nOn Mon, 5 Jan 2024 at 10:00, Jane Doe wrote:\n> Original question",
			want: []Segment{
				{Content: "Thanks!"},
				{
					Content:     "Original question",
					IsQuoted:    true,
					Depth:       1,
					Attribution: &Attribution{Sender: "Jane Doe", Date: "Mon, 5 Jan 2024 at 10:00"},
				},
			},
		},
		{
			name: "nested",
			in: "Sounds good.\n\n" +
				"On Tue, 6 Jan 2024, Bob Smith wrote:\n" +
				"> Can we meet?\n" +
				">\n" +
				"> On Mon, 5 Jan 2024, Jane Doe wrote:\n" +
				">> Original question",
			want: []Segment{
				{Content: "Sounds good."},
				{
					Content:     "Can we meet?",
					IsQuoted:    true,
					Depth:       1,
					Attribution: &Attribution{Sender: "Bob Smith", Date: "Tue, 6 Jan 2024"},
				},
				{
					Content:     "Original question",
					IsQuoted:    true,
					Depth:       2,
					Attribution: &Attribution{Sender: "Jane Doe", Date: "Mon, 5 Jan 2024"},
				},
			},
		},
		{
			name: "forward without commentary",
			in:   "From: Jane Doe <jane@example.com>\nSent: Monday\nSubject: Plans\n\nLet's meet at noon.",
			want: []Segment{
				{
					Content:     "Sent: Monday\nSubject: Plans\n\nLet's meet at noon.",
					IsQuoted:    true,
					Depth:       1,
					Attribution: &Attribution{Sender: "Jane Doe <jane@example.com>"},
				},
			},
		},
		{
			name: "quote prefix only",
			in:   "I agree.\n> Should we ship Friday?\n> Yes",
			want: []Segment{
				{Content: "I agree."},
				{Content: "Should we ship Friday?\nYes", IsQuoted: true, Depth: 1},
			},
		},
		{
			name: "earliest marker wins",
			in:   "Reply text\n> quoted line\n\nOn Mon, 5 Jan 2024, Jane Doe wrote:\n> older",
			want: []Segment{
				{Content: "Reply text"},
				{Content: "quoted line", IsQuoted: true, Depth: 1},
				{
					Content:     "older",
					IsQuoted:    true,
					Depth:       2,
					Attribution: &Attribution{Sender: "Jane Doe", Date: "Mon, 5 Jan 2024"},
				},
			},
		},
		{
			name: "header without comma has no attribution",
			in:   "Ok\n\nOn Tuesday Jane Smith wrote:\n> hi",
			want: []Segment{
				{Content: "Ok"},
				{Content: "hi", IsQuoted: true, Depth: 1},
			},
		},
		{
			name: "marker with nothing after it",
			in:   "Thanks\n\nOn Mon, 5 Jan 2024, Jane wrote:",
			want: []Segment{{Content: "Thanks"}},
		},
		{
			name: "header followed by a whitespace run",
			in:   "Thanks!\n\nOn Mon, 5 Jan 2024, Jane Doe wrote: \n\n> Original question",
			want: []Segment{
				{Content: "Thanks!"},
				{
					Content:     "Original question",
					IsQuoted:    true,
					Depth:       1,
					Attribution: &Attribution{Sender: "Jane Doe", Date: "Mon, 5 Jan 2024"},
				},
			},
		},
		{
			name: "header followed by blank lines",
			in:   "Thanks!\n\nOn Mon, 5 Jan 2024, Jane Doe wrote:\n\n\n> Original question",
			want: []Segment{
				{Content: "Thanks!"},
				{
					Content:     "Original question",
					IsQuoted:    true,
					Depth:       1,
					Attribution: &Attribution{Sender: "Jane Doe", Date: "Mon, 5 Jan 2024"},
				},
			},
		},
		{
			name: "nested header followed by blank lines",
			in: "Sounds good.\n\n" +
				"On Tue, 6 Jan 2024, Bob Smith wrote:\n" +
				"> Can we meet?\n" +
				">\n" +
				"> On Mon, 5 Jan 2024, Jane Doe wrote: \n" +
				">\n" +
				">> Original question",
			want: []Segment{
				{Content: "Sounds good."},
				{
					Content:     "Can we meet?",
					IsQuoted:    true,
					Depth:       1,
					Attribution: &Attribution{Sender: "Bob Smith", Date: "Tue, 6 Jan 2024"},
				},
				{
					Content:     "Original question",
					IsQuoted:    true,
					Depth:       2,
					Attribution: &Attribution{Sender: "Jane Doe", Date: "Mon, 5 Jan 2024"},
				},
			},
		},
		{
			name: "signature delimiter after blank lines in each segment",
			in: "Thanks for the help.\n\n\n-- \nJane Doe\n\n" +
				"On Mon, 5 Jan 2024, Bob wrote:\n" +
				"> Here is the file.\n" +
				">\n" +
				">\n" +
				">\n" +
				"> ---\n" +
				"> Bob",
			want: []Segment{
				{Content: "Thanks for the help."},
				{
					Content:     "Here is the file.",
					IsQuoted:    true,
					Depth:       1,
					Attribution: &Attribution{Sender: "Bob", Date: "Mon, 5 Jan 2024"},
				},
			},
		},
		{
			name: "text after the header on the same line is kept",
			in:   "Ok\n\nOn Mon, 5 Jan 2024, Jane wrote: see below\n> details",
			want: []Segment{
				{Content: "Ok"},
				{
					Content:     "see below\ndetails",
					IsQuoted:    true,
					Depth:       1,
					Attribution: &Attribution{Sender: "Jane", Date: "Mon, 5 Jan 2024"},
				},
			},
		},
		{
			name: "each segment is cleaned",
			in: "Sure thing.\n\nSent from my iPhone\n\n" +
				"On Mon, 5 Jan 2024, Jane Doe wrote:\n" +
				"> Is Friday ok?\n" +
				">\n" +
				"> Get Outlook for iOS",
			want: []Segment{
				{Content: "Sure thing."},
				{
					Content:     "Is Friday ok?",
					IsQuoted:    true,
					Depth:       1,
					Attribution: &Attribution{Sender: "Jane Doe", Date: "Mon, 5 Jan 2024"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q)\n got: %s\nwant: %s", tt.in, dump(got), dump(tt.want))
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n", "&#8203;"} {
		got := Parse(in)
		if got == nil || len(got) != 0 {
			t.Errorf("Parse(%q) = %#v, want an empty slice", in, got)
		}
	}
}

func TestParse_DepthCap(t *testing.T) {
	in := "Top\n\n" +
		"On Wed, 7 Jan 2024, Carol wrote:\n" +
		"> Mid\n" +
		"> On Tue, 6 Jan 2024, Bob wrote:\n" +
		">> Lower\n" +
		">> On Mon, 5 Jan 2024, Jane wrote:\n" +
		">>> Bottom"

	got := Parse(in)
	if len(got) != 3 {
		t.Fatalf("got %d segments, want 3: %s", len(got), dump(got))
	}
	if got[1].Content != "Mid" || got[1].Attribution == nil || got[1].Attribution.Sender != "Carol" {
		t.Errorf("depth 1 segment = %s", dump(got[1]))
	}

	deepest := got[2]
	if deepest.Depth != MaxDepth {
		t.Errorf("deepest depth = %d, want %d", deepest.Depth, MaxDepth)
	}
	if deepest.Attribution == nil || deepest.Attribution.Sender != "Bob" {
		t.Errorf("deepest attribution = %+v", deepest.Attribution)
	}
	want := "Lower\nOn Mon, 5 Jan 2024, Jane wrote:\nBottom"
	if deepest.Content != want {
		t.Errorf("deepest content = %q, want %q", deepest.Content, want)
	}
}

func TestParse_NoHeaderLeaksIntoShallowSegments(t *testing.T) {
	inputs := []string{
		"Thanks!\n\nOn Mon, 5 Jan 2024 at 10:00, Jane Doe wrote:\n> Original question",
		"Sounds good.\n\nOn Tue, 6 Jan 2024, Bob Smith wrote:\n> Can we meet?\n>\n> On Mon, 5 Jan 2024, Jane Doe wrote:\n>> Original question",
		"Top\n\nOn Wed, 7 Jan 2024, Carol wrote:\n> Mid\n> On Tue, 6 Jan 2024, Bob wrote:\n>> Lower",
	}

	for _, in := range inputs {
		for _, seg := range Parse(in) {
			if _, ok := sanitizer.FindReplyHeader(seg.Content); ok {
				t.Errorf("segment at depth %d still has a reply header: %q", seg.Depth, seg.Content)
			}
		}
	}
}

func TestFindBoundary(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		kind  MarkerKind
		start int
	}{
		{name: "wrote", in: "Hi\n\nOn Mon, 5 Jan 2024, Jane wrote:\n> x", kind: MarkerWrote, start: 4},
		{name: "from header", in: "Hi\nFrom: Bob\nbody", kind: MarkerFromHeader, start: 3},
		{name: "quote prefix", in: "Hi\n>> x", kind: MarkerQuotePrefix, start: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := findBoundary(tt.in)
			if !ok {
				t.Fatal("expected a boundary")
			}
			if b.kind != tt.kind || b.start != tt.start {
				t.Errorf("got (%s, %d), want (%s, %d)", b.kind, b.start, tt.kind, tt.start)
			}
		})
	}

	if _, ok := findBoundary("no history here"); ok {
		t.Error("unexpected boundary")
	}
	if b, _ := findBoundary("Hi\nFrom:   \nbody"); b.attribution != nil {
		t.Errorf("blank From: should carry no attribution, got %+v", b.attribution)
	}
}

func TestStripQuotePrefixes(t *testing.T) {
	got := StripQuotePrefixes("> a\n>> b\n> > c\n>\n  > d\nplain")
	want := "a\nb\nc\n\nd\nplain"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSegment_JSON(t *testing.T) {
	b, err := json.Marshal(Segment{Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"content":"hi","is_quoted":false,"depth":0}` {
		t.Errorf("unexpected JSON %s", b)
	}

	b, err = json.Marshal(Segment{Content: "q", IsQuoted: true, Depth: 1, Attribution: &Attribution{Sender: "Bob"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"content":"q","is_quoted":true,"depth":1,"attribution":{"sender":"Bob","date":""}}` {
		t.Errorf("unexpected JSON %s", b)
	}
}

// Whatever the body, the unquoted segment comes first at depth 0, quoted
// segments stay within MaxDepth and depths never decrease.
func TestParse_Invariants(t *testing.T) {
	pieces := []string{
		"Hello", " there", "\n", "\n\n", "> ", ">> ", "On Mon, 5 Jan 2024, Jane wrote:",
		"On Tue, 6 Jan 2024, Bob Smith wrote:", "From: Carol <c@example.com>\n",
		"Sent from my iPhone", "&nbsp;", "&#8203;", "www.example.com", "\n-- \n", "ok",
	}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteString(rapid.SampledFrom(pieces).Draw(t, "piece"))
		}
		in := b.String()
		segments := Parse(in)

		if len(segments) > MaxDepth+1 {
			t.Fatalf("Parse(%q) produced %d segments", in, len(segments))
		}
		prevDepth := -1
		for i, seg := range segments {
			if !seg.IsQuoted {
				if i != 0 || seg.Depth != 0 || seg.Attribution != nil {
					t.Fatalf("Parse(%q): unquoted segment %d = %s", in, i, dump(seg))
				}
			} else if seg.Depth < 1 || seg.Depth > MaxDepth {
				t.Fatalf("Parse(%q): quoted segment at depth %d", in, seg.Depth)
			}
			if seg.Depth <= prevDepth {
				t.Fatalf("Parse(%q): depths out of order: %s", in, dump(segments))
			}
			prevDepth = seg.Depth
		}
	})
}

func dump(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
