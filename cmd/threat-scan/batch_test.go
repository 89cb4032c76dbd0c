package main

import "testing"

func TestDecodeBatch(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"array", `[{"subject":"a","sender":"x@y.com","content":"c"},{"subject":"b"}]`, 2, false},
		{"items object", ` {"items":[{"subject":"a","sender":"x@y.com","content":"c"}]}`, 1, false},
		{"empty items", `{"items":[]}`, 0, false},
		{"missing items", `{"foo":1}`, 0, true},
		{"invalid", `not json`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBatch([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeBatch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("decodeBatch() = %d items, want %d", len(got), tt.want)
			}
		})
	}
}
