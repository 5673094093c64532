package akamai

import "testing"

func TestSplitEdgeHostname(t *testing.T) {
	tests := []struct {
		name         string
		edgeHostname string
		wantRecord   string
		wantZone     string
	}{
		{
			name:         "edgesuite hostname",
			edgeHostname: "www.example.com.edgesuite.net",
			wantRecord:   "www.example.com",
			wantZone:     EdgeSuiteZone,
		},
		{
			name:         "edgekey hostname",
			edgeHostname: "shop.example.org.edgekey.net",
			wantRecord:   "shop.example.org",
			wantZone:     EdgeKeyZone,
		},
		{
			name:         "unknown zone is returned unchanged",
			edgeHostname: "www.example.com.akamaized.net",
			wantRecord:   "www.example.com.akamaized.net",
			wantZone:     "",
		},
		{
			name:         "bare zone without record",
			edgeHostname: "edgekey.net",
			wantRecord:   "edgekey.net",
			wantZone:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, zone := splitEdgeHostname(tt.edgeHostname)

			if record != tt.wantRecord {
				t.Errorf("splitEdgeHostname() record = %v, want %v", record, tt.wantRecord)
			}
			if zone != tt.wantZone {
				t.Errorf("splitEdgeHostname() zone = %v, want %v", zone, tt.wantZone)
			}
		})
	}
}

func TestEdgeHostnameZone(t *testing.T) {
	tests := []struct {
		secureNetwork string
		expected      string
	}{
		{secureNetwork: StandardTLS, expected: EdgeSuiteZone},
		{secureNetwork: EnhancedTLS, expected: EdgeKeyZone},
		{secureNetwork: "", expected: EdgeKeyZone},
	}

	for _, tt := range tests {
		if got := EdgeHostnameZone(tt.secureNetwork); got != tt.expected {
			t.Errorf("EdgeHostnameZone(%q) = %v, want %v", tt.secureNetwork, got, tt.expected)
		}
	}
}

func TestParseNumericID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		prefix  string
		want    int
		wantErr bool
	}{
		{name: "prefixed cpcode", id: "cpc_456", prefix: "cpc_", want: 456},
		{name: "unprefixed edge hostname", id: "123", prefix: "ehn_", want: 123},
		{name: "surrounding spaces", id: " grp_12 ", prefix: "grp_", want: 12},
		{name: "wrong prefix", id: "ctr_1-ABC", prefix: "grp_", wantErr: true},
		{name: "empty", id: "", prefix: "cpc_", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNumericID(tt.id, tt.prefix)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseNumericID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseNumericID() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractIDFromLink(t *testing.T) {
	tests := []struct {
		name       string
		link       string
		collection string
		expected   string
	}{
		{
			name:       "property link",
			link:       "/papi/v1/properties/prp_173136?contractId=ctr_1-ABC&groupId=grp_15225",
			collection: "properties",
			expected:   "prp_173136",
		},
		{
			name:       "activation link",
			link:       "/papi/v1/properties/prp_173136/activations/atv_67037?contractId=ctr_1-ABC",
			collection: "activations",
			expected:   "atv_67037",
		},
		{
			name:       "cpcode link",
			link:       "/papi/v1/cpcodes/cpc_33190?contractId=ctr_1-ABC&groupId=grp_15225",
			collection: "cpcodes",
			expected:   "cpc_33190",
		},
		{
			name:       "collection missing",
			link:       "/papi/v1/properties/prp_1",
			collection: "edgehostnames",
			expected:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractIDFromLink(tt.link, tt.collection); got != tt.expected {
				t.Errorf("extractIDFromLink() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRulesContentType(t *testing.T) {
	tests := []struct {
		ruleFormat string
		expected   string
	}{
		{ruleFormat: "", expected: "application/vnd.akamai.papirules.latest+json"},
		{ruleFormat: "latest", expected: "application/vnd.akamai.papirules.latest+json"},
		{ruleFormat: "v2023-01-05", expected: "application/vnd.akamai.papirules.v2023-01-05+json"},
	}

	for _, tt := range tests {
		if got := RulesContentType(tt.ruleFormat); got != tt.expected {
			t.Errorf("RulesContentType(%q) = %v, want %v", tt.ruleFormat, got, tt.expected)
		}
	}
}

func TestAppsecIDs(t *testing.T) {
	if got := appsecContractID("ctr_1-ABC"); got != "1-ABC" {
		t.Errorf("appsecContractID() = %v, want 1-ABC", got)
	}
	got, err := appsecGroupID("grp_15225")
	if err != nil {
		t.Fatalf("appsecGroupID() error = %v", err)
	}
	if got != 15225 {
		t.Errorf("appsecGroupID() = %v, want 15225", got)
	}
}
