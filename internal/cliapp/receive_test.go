package cliapp

import "testing"

func TestParseRoomInput(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare code", input: "ABC123", want: "ABC123"},
		{name: "bare code lowercased", input: "abc123", want: "ABC123"},
		{name: "deep link", input: "https://beamline.dev?room=ABC123", want: "ABC123"},
		{name: "deep link mixed case", input: "https://beamline.dev?room=abc123", want: "ABC123"},
		{name: "deep link with path", input: "https://beamline.dev/?room=XY99ZZ", want: "XY99ZZ"},
		{name: "link without room param", input: "https://beamline.dev?other=1", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseRoomInput(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRoomInput(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("parseRoomInput(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
