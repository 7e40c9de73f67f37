// Package export serializes the ranked call list to CSV or XLSX.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/SyedAaraiz0050/territory-intel/internal/model"
)

// Row is one line of the ranked export. Field order is the column order.
type Row struct {
	Name           string  `csv:"name"`
	Phone          string  `csv:"phone"`
	Website        string  `csv:"website"`
	Address        string  `csv:"address"`
	Category       string  `csv:"category"`
	IndustryBucket string  `csv:"industry_bucket"`
	MobilityFit    int     `csv:"mobility_fit"`
	SecurityFit    int     `csv:"security_fit"`
	VoIPFit        int     `csv:"voip_fit"`
	FleetAttach    bool    `csv:"fleet_attach"`
	Rating         float64 `csv:"rating"`
	ReviewCount    int     `csv:"review_count"`
	TotalScore     float64 `csv:"total_score"`
	Rationale      string  `csv:"rationale"`
}

// Rows flattens ranked records into export rows. Records marked permanently
// closed are dropped; nobody calls a closed business.
func Rows(ranked []model.BusinessRecord) []Row {
	out := make([]Row, 0, len(ranked))
	for _, rec := range ranked {
		if rec.Classification == nil || rec.TotalScore == nil {
			continue
		}
		if s := rec.Identity.BusinessStatus; s != nil && *s == "CLOSED_PERMANENTLY" {
			continue
		}

		row := Row{
			Name:           str(rec.Identity.Name),
			Phone:          str(rec.Identity.Phone),
			Website:        str(rec.Identity.Website),
			Address:        str(rec.Identity.Address),
			Category:       str(rec.Identity.Category),
			IndustryBucket: rec.Classification.IndustryBucket,
			MobilityFit:    rec.Classification.MobilityFit,
			SecurityFit:    rec.Classification.SecurityFit,
			VoIPFit:        rec.Classification.VoIPFit,
			FleetAttach:    rec.Classification.FleetAttach,
			TotalScore:     *rec.TotalScore,
			Rationale:      rec.Classification.Rationale,
		}
		if rec.Signals.Rating != nil {
			row.Rating = *rec.Signals.Rating
		}
		if rec.Signals.ReviewCount != nil {
			row.ReviewCount = *rec.Signals.ReviewCount
		}
		out = append(out, row)
	}
	return out
}

// WriteFile writes rows to path in the given format ("csv" or "xlsx"),
// creating parent directories as needed.
func WriteFile(path, format string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create directory for %s", path)
	}

	switch format {
	case "csv":
		return writeCSV(path, rows)
	case "xlsx":
		return writeXLSX(path, rows)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

func writeCSV(path string, rows []Row) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "export: marshal csv")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

func writeXLSX(path string, rows []Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Ranked Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"name", "phone", "website", "address", "category",
		"industry_bucket", "mobility_fit", "security_fit", "voip_fit",
		"fleet_attach", "rating", "review_count", "total_score", "rationale",
	} {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Name)
		row.AddCell().SetString(r.Phone)
		row.AddCell().SetString(r.Website)
		row.AddCell().SetString(r.Address)
		row.AddCell().SetString(r.Category)
		row.AddCell().SetString(r.IndustryBucket)
		row.AddCell().SetInt(r.MobilityFit)
		row.AddCell().SetInt(r.SecurityFit)
		row.AddCell().SetInt(r.VoIPFit)
		row.AddCell().SetString(fmt.Sprintf("%t", r.FleetAttach))
		row.AddCell().SetFloat(r.Rating)
		row.AddCell().SetInt(r.ReviewCount)
		row.AddCell().SetFloat(r.TotalScore)
		row.AddCell().SetString(r.Rationale)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
