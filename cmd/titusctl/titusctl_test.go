package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const shipmentsCSV = `DATE,Destination,Client code,Client level,Category1,Profit,Sales total,Cost total,WEIGHT,CBM
2024-01-10,Lagos,C1,VIP,Food,100,300,200,10,1
2024-02-05,Accra,C2,Std,Tools,50,200,150,4,0.5
2024-02-20,Lagos,C1,VIP,Food,30,130,100,2,0.2
`

func writeShipments(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shipments.csv")
	if err := os.WriteFile(path, []byte(shipmentsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestFilterFlagsForm(t *testing.T) {
	tests := []struct {
		name    string
		flags   filterFlags
		want    map[string][]string
		wantErr bool
	}{
		{
			name:  "set values accumulate",
			flags: filterFlags{in: []string{"destination=Lagos", "destination=Accra", "client_level="}},
			want: map[string][]string{
				"in.destination":  {"Lagos", "Accra"},
				"in.client_level": {""},
			},
		},
		{
			name:  "range splits bounds",
			flags: filterFlags{ranges: []string{"profit=0:80"}},
			want:  map[string][]string{"lo.profit": {"0"}, "hi.profit": {"80"}},
		},
		{
			name:  "custom dates",
			flags: filterFlags{from: "2024-01-01", to: "2024-01-31"},
			want:  map[string][]string{"date_from": {"2024-01-01"}, "date_to": {"2024-01-31"}},
		},
		{
			name:    "filter without value",
			flags:   filterFlags{in: []string{"destination"}},
			wantErr: true,
		},
		{
			name:    "range without colon",
			flags:   filterFlags{ranges: []string{"profit=10"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, err := tt.flags.form()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("form() = %v, want error", form)
				}
				return
			}
			if err != nil {
				t.Fatalf("form() error = %v", err)
			}
			for key, want := range tt.want {
				got := form[key]
				if strings.Join(got, "|") != strings.Join(want, "|") {
					t.Errorf("form[%q] = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestSummaryCommand(t *testing.T) {
	path := writeShipments(t)

	out, err := run(t, "summary", path, "--filter", "destination=Lagos", "--year", "2024")
	if err != nil {
		t.Fatalf("summary: %v\n%s", err, out)
	}
	for _, want := range []string{"2 of 3", "$430.00", "$130.00", "Destination: Lagos", "Monthly metrics 2024", "Jan", "Feb"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryUnknownField(t *testing.T) {
	path := writeShipments(t)
	if _, err := run(t, "summary", path, "--filter", "planet=Mars"); err == nil {
		t.Error("summary accepted a filter on an unknown field")
	}
}

func TestExportCommand(t *testing.T) {
	path := writeShipments(t)
	dest := filepath.Join(t.TempDir(), "out.csv")

	if out, err := run(t, "export", path, "--range", "profit=200:40", "-o", dest); err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}

	f, err := os.Open(dest)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("export has %d lines, want header plus 2 rows", len(records))
	}
	if !strings.Contains(strings.Join(records[0], ","), "Destination") {
		t.Errorf("header = %v", records[0])
	}
}

func TestReportsCommand(t *testing.T) {
	out, err := run(t, "reports")
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if !strings.Contains(out, "built-in pages") {
		t.Errorf("reports output = %q", out)
	}
}
