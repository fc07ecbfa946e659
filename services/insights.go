package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"rental-ooh/models"
	"rental-ooh/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises a scrape. Rent figures come from every priced
// listing; area figures come from the cleaned records.
func (s *InsightService) Generate(listings []models.PricedListing, records []models.RentalRecord) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByCity:    make(map[string]int),
		AverageRentByCity: make(map[string]float64),
	}

	if len(listings) > 0 {
		report.TotalListings = len(listings)
		report.MinRent = listings[0].MonthlyRent
		report.MaxRent = listings[0].MonthlyRent
		report.MostExpensive = &listings[0]

		var rentTotal float64
		cityTotals := make(map[string]float64)

		for i := range listings {
			l := &listings[i]
			rentTotal += l.MonthlyRent

			if l.MonthlyRent < report.MinRent {
				report.MinRent = l.MonthlyRent
			}
			if l.MonthlyRent > report.MaxRent {
				report.MaxRent = l.MonthlyRent
				report.MostExpensive = l
			}

			report.ListingsByCity[l.City]++
			cityTotals[l.City] += l.MonthlyRent
		}

		report.AverageRent = round2(rentTotal / float64(len(listings)))
		report.MinRent = round2(report.MinRent)
		report.MaxRent = round2(report.MaxRent)

		for city, total := range cityTotals {
			report.AverageRentByCity[city] = round2(total / float64(report.ListingsByCity[city]))
		}
	}

	if len(records) > 0 {
		var perM2Total, areaTotal float64
		for _, r := range records {
			perM2Total += r.RentPerM2()
			areaTotal += r.FloorArea
		}
		n := float64(len(records))
		report.TotalRecords = len(records)
		report.AverageRentPerM2 = round2(perM2Total / n)
		report.AverageFloorArea = round2(areaTotal / n)
	}

	return report
}

func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  RENTAL LISTING INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Priced listings   : \033[1m%d\033[0m\n", r.TotalListings)
	if r.TotalListings == 0 {
		fmt.Fprintf(w, "  No rent data available\n")
		fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}
	fmt.Fprintf(w, "  Average rent      : \033[1;32m%.2f RMB/month\033[0m\n", r.AverageRent)
	fmt.Fprintf(w, "  Minimum rent      : \033[1;32m%.2f RMB/month\033[0m\n", r.MinRent)
	fmt.Fprintf(w, "  Maximum rent      : \033[1;32m%.2f RMB/month\033[0m\n", r.MaxRent)
	if r.MostExpensive != nil {
		fmt.Fprintf(w, "  Most expensive    : %s (%s)\n", r.MostExpensive.Title, r.MostExpensive.City)
	}
	fmt.Fprintf(w, "  Clean records     : \033[1m%d\033[0m\n", r.TotalRecords)
	if r.TotalRecords > 0 {
		fmt.Fprintf(w, "  Average rent / m² : \033[1;32m%.2f RMB\033[0m\n", r.AverageRentPerM2)
		fmt.Fprintf(w, "  Average floor area: \033[1m%.2f m²\033[0m\n", r.AverageFloorArea)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  By City\033[0m\n")
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"City", "Listings", "Average rent"})

	cities := make([]string, 0, len(r.ListingsByCity))
	for city := range r.ListingsByCity {
		cities = append(cities, city)
	}
	sort.Slice(cities, func(i, j int) bool {
		if r.ListingsByCity[cities[i]] != r.ListingsByCity[cities[j]] {
			return r.ListingsByCity[cities[i]] > r.ListingsByCity[cities[j]]
		}
		return cities[i] < cities[j]
	})
	for _, city := range cities {
		t.AppendRow(table.Row{city, r.ListingsByCity[city], fmt.Sprintf("%.2f", r.AverageRentByCity[city])})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// PrintEstimates renders one row per stratum and a total row per region.
func (s *InsightService) PrintEstimates(w io.Writer, estimates map[string]models.OOHEstimate, bands models.Bands) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Nominal OOH by rental equivalence")
	t.AppendHeader(table.Row{"Region", "Tier", "Floor area", "Age", "Rent/month", "Rent/m²/year", "Effective m²", "Nominal value"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})

	for _, region := range sortedRegions(estimates) {
		est := estimates[region]
		for _, st := range est.Strata {
			t.AppendRow(table.Row{
				region,
				st.Key.Tier,
				bands.FloorArea.Label(st.Key.AreaBand),
				bands.Age.Label(st.Key.AgeBand),
				fmt.Sprintf("%.2f", st.MonthlyRent),
				fmt.Sprintf("%.2f", st.AnnualRentPerM2),
				fmt.Sprintf("%.0f", st.EffectiveFloorArea),
				fmt.Sprintf("%.0f", st.NominalValue),
			})
		}
		t.AppendRow(table.Row{
			region + " total", "", "", "", "",
			fmt.Sprintf("%.2f", est.AnnualizedRentPerM2),
			fmt.Sprintf("%.0f", est.EffectiveFloorArea),
			fmt.Sprintf("%.0f", est.NominalValue),
		})
		for _, k := range est.MissingStrata {
			t.AppendRow(table.Row{region, k.Tier, bands.FloorArea.Label(k.AreaBand), bands.Age.Label(k.AgeBand), "no data", "", "", ""})
		}
		t.AppendSeparator()
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func sortedRegions(estimates map[string]models.OOHEstimate) []string {
	regions := make([]string, 0, len(estimates))
	for region := range estimates {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
