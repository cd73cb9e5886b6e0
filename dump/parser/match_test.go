package parser

import (
	"testing"
	"time"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		kind  Kind
		line  string
		want  string
		match bool
	}{
		{KindPageStart, "  <page>", "", true},
		{KindPageStart, "<pages>", "", false},
		{KindPageStart, "text <page>", "", false},
		{KindTitle, "    <title>AccessibleComputing</title>", "AccessibleComputing", true},
		{KindTitle, "<title></title>", "", false},
		{KindID, "<id>10</id>", "10", true},
		{KindID, "<parentid>381202555</parentid>", "", false},
		{KindID, "<id>ten</id>", "", false},
		{KindRedirect, `<redirect title="Computer accessibility" />`, "", true},
		{KindRedirect, "<redirect>", "", false},
		{KindRevisionStart, "    <revision>", "", true},
		{KindRevisionEnd, "    </revision>", "", true},
		{KindTimestamp, "<timestamp>2014-10-26T04:50:23Z</timestamp>", "2014-10-26T04:50:23Z", true},
		{KindTimestamp, "<timestamp>2014-10-26T04:50:23Z</timestamp> trailing", "", false},
		{KindContributorStart, "<contributor>", "", true},
		{KindContributorEnd, "</contributor>", "", true},
		{KindUsername, "<username>Paine Ellsworth</username>", "Paine Ellsworth", true},
		{KindComment, "<comment>add rcats</comment>", "add rcats", true},
		{KindComment, `<comment deleted="deleted" />`, "", false},
		{KindMinor, "<minor />", "", true},
		{KindMinor, "<minor/>", "", true},
		{KindTextStart, `<text xml:space="preserve">#REDIRECT`, "#REDIRECT", true},
		{KindTextStart, "<text>", "", true},
		{KindTextStart, `<text xml:space="preserve">one line</text>`, "one line</text>", true},
		{KindTextStart, `<text xml:space="preserve" />`, "", false},
		{KindTextStart, "<textarea>", "", false},
		{KindTextEmpty, `<text deleted="deleted" />`, ` deleted="deleted" `, true},
		{KindTextEmpty, "<text/>", "", true},
		{KindTextEmpty, `<text xml:space="preserve">x</text>`, "", false},
		{KindTextEnd, "last line</text>", "last line", true},
		{KindTextEnd, "</text>", "", true},
		{KindPageEnd, "  </page>", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String()+" "+tt.line, func(t *testing.T) {
			got, ok := Match(tt.kind, tt.line)
			if ok != tt.match {
				t.Fatalf("Match(%s, %q) ok = %v, want %v", tt.kind, tt.line, ok, tt.match)
			}
			if got != tt.want {
				t.Errorf("Match(%s, %q) = %q, want %q", tt.kind, tt.line, got, tt.want)
			}
		})
	}
}

func TestMatchTextEmptyDeleted(t *testing.T) {
	tests := []struct {
		line    string
		deleted bool
	}{
		{`<text deleted="deleted" />`, true},
		{`<text xml:space="preserve" bytes="0" />`, false},
		{"<text />", false},
	}
	for _, tt := range tests {
		deleted, ok := matchTextEmpty(tt.line)
		if !ok {
			t.Fatalf("matchTextEmpty(%q) did not match", tt.line)
		}
		if deleted != tt.deleted {
			t.Errorf("matchTextEmpty(%q) deleted = %v, want %v", tt.line, deleted, tt.deleted)
		}
	}
}

func TestMatchID(t *testing.T) {
	if id, ok := MatchID("  <id>9092818</id>"); !ok || id != 9092818 {
		t.Errorf("MatchID = %d, %v, want 9092818, true", id, ok)
	}
	if id, ok := MatchID("<id>99999999999999999999999</id>"); ok {
		t.Errorf("MatchID accepted an overflowing id: %d", id)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2014-10-26T04:50:23Z", time.Date(2014, 10, 26, 4, 50, 23, 0, time.UTC)},
		{"2014-10-26T06:50:23+02:00", time.Date(2014, 10, 26, 4, 50, 23, 0, time.UTC)},
		{"2014-10-26T04:50:23.123456Z", time.Date(2014, 10, 26, 4, 50, 23, 123000000, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) error: %v", tt.in, err)
		}
		if !got.Equal(tt.want) || got.Location() != time.UTC {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("ParseTimestamp(yesterday) should fail")
	}
}

func TestMatchTimestamp(t *testing.T) {
	_, raw, ok, err := MatchTimestamp("<timestamp>nope</timestamp>")
	if !ok || err == nil || raw != "nope" {
		t.Errorf("MatchTimestamp = %q, %v, %v", raw, ok, err)
	}
	if _, _, ok, _ := MatchTimestamp("<id>1</id>"); ok {
		t.Error("MatchTimestamp matched a non-timestamp line")
	}
}
