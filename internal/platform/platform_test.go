package platform

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    Platform
		wantErr bool
	}{
		{"codeforces", Codeforces, false},
		{"CODEFORCES", Codeforces, false},
		{"  AtCoder ", AtCoder, false},
		{"nowcoder", NowCoder, false},
		{"leetcode", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDispatchTableConsistency(t *testing.T) {
	for _, p := range All() {
		if !p.Valid() {
			t.Errorf("%s listed but not valid", p)
		}
		if p.RatingColumn() == "" {
			t.Errorf("%s has no rating column", p)
		}
	}

	// only codeforces submissions carry skill metadata
	if !Codeforces.SuppliesTags() {
		t.Error("codeforces should supply tags")
	}
	if AtCoder.SuppliesTags() || NowCoder.SuppliesTags() {
		t.Error("only codeforces supplies tags")
	}

	// weights of rated platforms sum to 1; nowcoder is tracked but unweighted
	if sum := Codeforces.Weight() + AtCoder.Weight(); sum != 1.0 {
		t.Errorf("rated weights sum to %v, want 1.0", sum)
	}
	if NowCoder.Weight() != 0 {
		t.Errorf("nowcoder weight = %v, want 0", NowCoder.Weight())
	}
}
