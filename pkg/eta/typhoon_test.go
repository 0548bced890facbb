package eta

import "testing"

func TestParseTyphoonInfo(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		wantSignal int
		wantAbove  bool
	}{
		{"signal one", "TC1", 1, false},
		{"signal three", "TC3", 3, false},
		{"signal eight", "TC8NE", 8, true},
		{"signal ten", "TC10", 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := warningSummaryResponse{}
			summary.TropicalCyclone = &struct {
				Code string `json:"code"`
				Type string `json:"type"`
			}{Code: tt.code, Type: "Tropical Cyclone Warning Signal"}

			info := parseTyphoonInfo(summary)
			if info.SignalLevel != tt.wantSignal {
				t.Errorf("SignalLevel = %d, want %d", info.SignalLevel, tt.wantSignal)
			}
			if info.IsAboveSignalEight != tt.wantAbove {
				t.Errorf("IsAboveSignalEight = %v, want %v", info.IsAboveSignalEight, tt.wantAbove)
			}
		})
	}

	if info := parseTyphoonInfo(warningSummaryResponse{}); info.SignalLevel != 0 || info.IsAboveSignalEight {
		t.Error("no warning in force should parse to the zero state")
	}
}
