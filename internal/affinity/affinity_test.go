package affinity

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cpu     int
		online  int
		wantErr bool
	}{
		{"first core", 0, 4, false},
		{"last core", 3, 4, false},
		{"one past end", 4, 4, true},
		{"far out of range", 128, 4, true},
		{"negative", -1, 4, true},
		{"single core host default target", 1, 1, true},
	}

	for _, tt := range tests {
		err := Validate(tt.cpu, tt.online)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate(%d, %d) = %v, wantErr %v", tt.name, tt.cpu, tt.online, err, tt.wantErr)
		}
	}
}
