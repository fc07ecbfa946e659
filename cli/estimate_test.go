package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rental-ooh/models"
)

const cliStrata = `
tier_count: 2
floor_area_bands: [0, 60, 90]
age_bands: [0, 10]
missing_stratum_policy: exclude
partial_results: %s
cities:
  sh: {name: Shanghai, tier: 1}
  nj: {name: Nanjing, tier: 2}
  su: {name: Suzhou, tier: 2}
regions:
  - name: jiangsu
    weights: {nj: 0.6, su: 0.4}
    effective_floor_area:
      - {tier: 2, area_band: 1, age_band: 0, area: 1000}
      - {tier: 2, area_band: 0, age_band: 1, area: 500}
  - name: shanghai
    weights: {sh: 1}
    effective_floor_area:
      - {tier: 1, area_band: 1, age_band: 0, area: 2000}
%s`

// gz is not configured and carries no tier; it must be ignored.
const cliRecords = `city,tier,floor_area,dwelling_age,monthly_rent
nj,2,70,5,6500
nj,2,80,2,7500
nj,2,40,15,3000
su,2,75,8,5000
sh,1,85,1,9000
gz,,60,3,4000
`

type estimateFixture struct {
	strata  string
	records string
	output  string
}

func newEstimateFixture(t *testing.T, partial bool, extraArea string) estimateFixture {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("POSTGRES_ENABLED", "false")
	t.Setenv("ESTIMATE_OUTPUT_PATH", filepath.Join(dir, "default_estimates.csv"))

	mode := "false"
	if partial {
		mode = "true"
	}
	f := estimateFixture{
		strata:  filepath.Join(dir, "strata.yaml"),
		records: filepath.Join(dir, "records.csv"),
		output:  filepath.Join(dir, "estimates.csv"),
	}
	doc := fmt.Sprintf(cliStrata, mode, extraArea)
	if err := os.WriteFile(f.strata, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.records, []byte(cliRecords), 0o644); err != nil {
		t.Fatal(err)
	}
	return f
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	envFile, strataPath, verbose = "", "", false
	inputPath, fromDB, scrapeCities, outputPath, workers = "", false, nil, "", 0

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEstimateRequiresExactlyOneSource(t *testing.T) {
	f := newEstimateFixture(t, false, "")

	tests := []struct {
		name string
		args []string
	}{
		{"none", []string{"estimate", "--strata", f.strata}},
		{"input and db", []string{"estimate", "--strata", f.strata, "--input", f.records, "--from-db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), "exactly one of") {
				t.Fatalf("got %v, want source error", err)
			}
		})
	}
}

func TestEstimateFromCSV(t *testing.T) {
	f := newEstimateFixture(t, false, "")

	out, err := runCLI(t, "estimate", "--strata", f.strata, "--input", f.records, "--output", f.output, "--workers", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"jiangsu total", "shanghai total", "1592000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "gz") {
		t.Errorf("unconfigured city reached the estimate:\n%s", out)
	}

	data, err := os.ReadFile(f.output)
	if err != nil {
		t.Fatalf("estimate CSV: %v", err)
	}
	csv := string(data)
	if !strings.HasPrefix(csv, "region,tier,floor_area_band,age_band") {
		t.Errorf("estimate CSV header: %q", strings.SplitN(csv, "\n", 2)[0])
	}
	if !strings.Contains(csv, "jiangsu,2,1,0") || !strings.Contains(csv, "shanghai,1,1,0") {
		t.Errorf("estimate CSV rows:\n%s", csv)
	}
}

func TestEstimateMissingStratum(t *testing.T) {
	// shanghai has no small old dwellings in the records.
	extra := "      - {tier: 1, area_band: 0, age_band: 1, area: 300}\n"

	t.Run("strict", func(t *testing.T) {
		f := newEstimateFixture(t, false, extra)
		_, err := runCLI(t, "estimate", "--strata", f.strata, "--input", f.records, "--output", f.output)
		var insufficient *models.InsufficientDataError
		if !errors.As(err, &insufficient) {
			t.Fatalf("got %v, want *InsufficientDataError", err)
		}
		if _, err := os.Stat(f.output); !os.IsNotExist(err) {
			t.Errorf("strict failure wrote %s", f.output)
		}
	})

	t.Run("partial", func(t *testing.T) {
		f := newEstimateFixture(t, true, extra)
		out, err := runCLI(t, "estimate", "--strata", f.strata, "--input", f.records, "--output", f.output)
		if err != nil {
			t.Fatalf("partial results should succeed, got %v", err)
		}
		if !strings.Contains(out, "no data") {
			t.Errorf("missing stratum not reported:\n%s", out)
		}
		if _, err := os.Stat(f.output); err != nil {
			t.Errorf("estimate CSV: %v", err)
		}
	})
}

func TestEstimateNothingEstimable(t *testing.T) {
	f := newEstimateFixture(t, true, "")
	only := filepath.Join(filepath.Dir(f.records), "gz.csv")
	if err := os.WriteFile(only, []byte("city,floor_area,dwelling_age,monthly_rent\ngz,60,3,4000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := runCLI(t, "estimate", "--strata", f.strata, "--input", only, "--output", f.output)
	if err == nil || !strings.Contains(err.Error(), "no region could be estimated") {
		t.Fatalf("got %v, want no-estimate error", err)
	}
}
